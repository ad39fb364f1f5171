package testutil

import (
	"sync"
	"testing"

	"github.com/dalemusser/schedulehub/internal/app/resources"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

var (
	bootOnce sync.Once
	bootErr  error
)

// BootTemplates boots the template engine over every registered set, as
// BuildHandler does, so handler tests can assert on rendered HTML. Feature
// sets register themselves when the feature package is imported.
func BootTemplates(t *testing.T) {
	t.Helper()
	bootOnce.Do(func() {
		resources.LoadSharedTemplates()
		eng := templates.New(false)
		if bootErr = eng.Boot(zap.NewNop()); bootErr == nil {
			templates.UseEngine(eng, zap.NewNop())
		}
	})
	if bootErr != nil {
		t.Fatalf("boot templates: %v", bootErr)
	}
}
