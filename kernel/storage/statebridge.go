package storage

import (
	"context"
	"encoding/json"
	"strings"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
	"github.com/flowforge/kernel/kernel/ctx"
)

// StateBridge adapts a tenant-scoped Backend into ctx.StateAccess, the
// interface the workflow engine holds its persistent state through. Keys are namespaced by scope so unrelated scopes never
// collide in the underlying kv_store table.
type StateBridge struct {
	backend Backend
}

// NewStateBridge wraps backend as a ctx.StateAccess.
func NewStateBridge(backend Backend) *StateBridge {
	return &StateBridge{backend: backend}
}

func scopedKey(scope ctx.Scope, key string) string {
	return scope.String() + ":" + key
}

func (b *StateBridge) Load(c context.Context, scope ctx.Scope, key string) (interface{}, bool, error) {
	raw, err := b.backend.Get(c, scopedKey(scope, key))
	if err != nil {
		if kerrors.KindOf(err) == kerrors.KindNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, kerrors.Wrap(kerrors.KindValidation, "corrupt state value", err)
	}
	return value, true, nil
}

func (b *StateBridge) Store(c context.Context, scope ctx.Scope, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return kerrors.Wrap(kerrors.KindValidation, "state value not serializable", err)
	}
	return b.backend.Set(c, scopedKey(scope, key), raw)
}

func (b *StateBridge) Delete(c context.Context, scope ctx.Scope, key string) error {
	return b.backend.Delete(c, scopedKey(scope, key))
}

func (b *StateBridge) ListKeys(c context.Context, scope ctx.Scope, prefix string) ([]string, error) {
	full, err := b.backend.ListKeys(c, scopedKey(scope, prefix))
	if err != nil {
		return nil, err
	}
	scopePrefix := scope.String() + ":"
	keys := make([]string, 0, len(full))
	for _, k := range full {
		keys = append(keys, strings.TrimPrefix(k, scopePrefix))
	}
	return keys, nil
}

var _ ctx.StateAccess = (*StateBridge)(nil)
