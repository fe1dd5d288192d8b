// Package session holds the dashboard's mutable state: the uploaded file, the trained model and
// the smoothed display values.
package session

import (
	"sync"

	"socdash/dashboard/services/monitor/internal/models"
)

// Model identifies a trained backend model.
type Model struct {
	UserID    string
	ModelType string
}

// Session is shared by the poller and the HTTP handlers.
type Session struct {
	mu sync.RWMutex

	defaultModel string
	userID       string
	headers      []string
	mapping      models.ColumnMapping
	modelType    string
	trained      bool
	highlights   map[string]string
	maxVoltage   float64
	display      DisplayMemory
}

// New returns an idle session. defaultModel is used when training without an explicit type.
func New(defaultModel string) *Session {
	if defaultModel == "" {
		defaultModel = models.ModelFast
	}
	return &Session{
		defaultModel: defaultModel,
		modelType:    defaultModel,
		display:      NewDisplayMemory(),
	}
}

// Uploaded records a freshly uploaded file. Any earlier model stops driving predictions.
func (s *Session) Uploaded(userID string, headers []string, guessed models.ColumnMapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.headers = append([]string(nil), headers...)
	s.mapping = guessed
	s.trained = false
	s.highlights = nil
	s.maxVoltage = 0
}

// Trained marks the model as ready and resets the display memory.
func (s *Session) Trained(mapping models.ColumnMapping, modelType string, highlights map[string]string, maxVoltage float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapping = mapping
	s.modelType = s.resolveModel(modelType)
	s.trained = true
	s.highlights = highlights
	s.maxVoltage = maxVoltage
	s.display.Reset()
}

// SetModelType switches the model used for live predictions without retraining.
func (s *Session) SetModelType(modelType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelType = s.resolveModel(modelType)
}

// ResolveModel returns modelType or the default when empty.
func (s *Session) ResolveModel(modelType string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveModel(modelType)
}

func (s *Session) resolveModel(modelType string) string {
	if modelType == "" {
		return s.defaultModel
	}
	return modelType
}

// ModelType returns the selected model type, trained or not.
func (s *Session) ModelType() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelType
}

// Active returns the model driving live predictions, if one is trained.
func (s *Session) Active() (Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.trained || s.userID == "" {
		return Model{}, false
	}
	return Model{UserID: s.userID, ModelType: s.modelType}, true
}

// UserID returns the id of the last uploaded file.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Headers returns the headers of the last uploaded file.
func (s *Session) Headers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.headers...)
}

// Mapping returns the current column mapping.
func (s *Session) Mapping() models.ColumnMapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mapping
}

// Highlights returns remaining-time highlights from the last training run.
func (s *Session) Highlights() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.highlights))
	for k, v := range s.highlights {
		out[k] = v
	}
	return out
}

// MaxVoltage returns the highest voltage seen in training data, or 0.
func (s *Session) MaxVoltage() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxVoltage
}

// Smooth feeds raw values through the display memory.
func (s *Session) Smooth(rawSoC, rawDuration float64) models.Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.display.Observe(rawSoC, rawDuration)
}

// Display returns the current smoothed values.
func (s *Session) Display() models.Display {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.display.Value()
}

// ResetDisplay restores 100% / unknown.
func (s *Session) ResetDisplay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.display.Reset()
}
