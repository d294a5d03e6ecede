package all

import (
	"testing"

	"github.com/Huy0211/DPA01-project/internal/storage"
)

func TestAllBackendsRegistered(t *testing.T) {
	got := map[string]bool{}
	for _, k := range storage.Kinds() {
		got[k] = true
	}
	for _, want := range []string{"mssql", "postgres", "sqlite"} {
		if !got[want] {
			t.Errorf("backend %q not registered; have %v", want, storage.Kinds())
		}
	}
}
