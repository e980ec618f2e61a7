package runner

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scenario-cli/api/schemas"
)

// DialogInterceptor dismisses every native dialog raised on a page and keeps a
// record of it. Drivers may call Handle from their own goroutines.
type DialogInterceptor struct {
	mu      sync.Mutex
	logger  *zap.Logger
	records []schemas.DialogRecord
	now     func() time.Time
}

// NewDialogInterceptor creates an interceptor that logs through logger.
func NewDialogInterceptor(logger *zap.Logger) *DialogInterceptor {
	return &DialogInterceptor{logger: logger, now: time.Now}
}

// Handle dismisses d, logs it, and records it. It never touches scenario state.
func (i *DialogInterceptor) Handle(d schemas.Dialog) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := d.Dismiss(); err != nil {
		i.logger.Warn("Failed to dismiss dialog.", zap.String("type", d.Type()), zap.Error(err))
	}
	i.logger.Info("Intercepted dialog", zap.String("type", d.Type()), zap.String("message", d.Message()))
	i.records = append(i.records, schemas.DialogRecord{
		Type:    d.Type(),
		Message: d.Message(),
		At:      i.now(),
	})
}

// Records returns a copy of the dialogs seen so far, oldest first.
func (i *DialogInterceptor) Records() []schemas.DialogRecord {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]schemas.DialogRecord, len(i.records))
	copy(out, i.records)
	return out
}
