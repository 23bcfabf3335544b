package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/dspconsole/internal/shared/id"
	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

type closable struct {
	closed bool
}

func (c *closable) Close() error {
	c.closed = true
	return nil
}

func TestRegisterAndGet(t *testing.T) {
	r := New(nil)

	h, err := r.Register(KindFilter, "bandpass", &closable{})
	require.NoError(t, err)
	assert.Equal(t, id.FilterPrefix, h.Prefix())

	entry, err := r.Get(h)
	require.NoError(t, err)
	assert.Equal(t, KindFilter, entry.Kind)
	assert.Equal(t, "bandpass", entry.Name)
	assert.False(t, entry.RegisteredAt.IsZero())
}

func TestRegisterValidation(t *testing.T) {
	r := New(nil)

	_, err := r.Register(KindFilter, "bandpass", nil)
	assert.True(t, errors.Is(err, types.ErrInvalidConfig))

	_, err = r.Register(KindFilter, "", &closable{})
	assert.True(t, errors.Is(err, types.ErrInvalidConfig))
}

func TestUnregisterNotFound(t *testing.T) {
	r := New(nil)

	err := r.Unregister(id.Handle("flt_missing"))
	assert.True(t, errors.Is(err, types.ErrNotFound))

	_, err = r.Get(id.Handle("flt_missing"))
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestListPreservesRegistrationOrder(t *testing.T) {
	r := New(nil)

	var want []id.Handle
	for _, name := range []string{"a", "b", "c", "d"} {
		h, err := r.Register(KindDisplay, name, &closable{})
		require.NoError(t, err)
		want = append(want, h)
	}
	r.Register(KindFilter, "gain", &closable{})

	assert.Equal(t, want, r.List(KindDisplay))
	assert.Len(t, r.List(KindFilter), 1)
	assert.Len(t, r.List(""), 5)
}

func TestUnregisterCascadesThroughDetacher(t *testing.T) {
	r := New(nil)

	attached := map[id.Handle]bool{}
	r.SetDetacher(KindFilter, func(h id.Handle) error {
		if !attached[h] {
			return types.ErrNotFound
		}
		delete(attached, h)
		return nil
	})

	h, err := r.RegisterWith(KindFilter, "notch", &closable{}, func(h id.Handle) error {
		attached[h] = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, attached[h])

	require.NoError(t, r.Unregister(h))
	assert.False(t, attached[h])

	_, err = r.Get(h)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestFailedDetachKeepsEntry(t *testing.T) {
	r := New(nil)
	r.SetDetacher(KindDisplay, func(id.Handle) error {
		return errors.New("render in progress")
	})

	h, _ := r.Register(KindDisplay, "time", &closable{})
	assert.Error(t, r.Unregister(h))

	_, err := r.Get(h)
	assert.NoError(t, err)
}

func TestFailedAttachRollsBack(t *testing.T) {
	r := New(nil)

	_, err := r.RegisterWith(KindFilter, "pca", &closable{}, func(id.Handle) error {
		return types.ErrShapeMismatch
	})
	assert.True(t, errors.Is(err, types.ErrShapeMismatch))
	assert.Equal(t, 0, r.Len())
}

func TestLookup(t *testing.T) {
	r := New(nil)

	first, _ := r.Register(KindFilter, "gain", &closable{})
	r.Register(KindFilter, "gain", &closable{})
	disp, _ := r.Register(KindDisplay, "gain", &closable{})

	entry, err := r.Lookup(KindFilter, "gain")
	require.NoError(t, err)
	assert.Equal(t, first, entry.Handle)

	entry, err = r.Lookup(KindDisplay, disp.String())
	require.NoError(t, err)
	assert.Equal(t, disp, entry.Handle)

	// a handle of another kind does not resolve
	_, err = r.Lookup(KindFilter, disp.String())
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestObserverAndStats(t *testing.T) {
	counts := map[Kind]int{}
	r := New(nil).WithObserver(func(kind Kind, count int) {
		counts[kind] = count
	})

	h, _ := r.Register(KindSource, "synthetic", &closable{})
	r.Register(KindDisplay, "time", &closable{})
	assert.Equal(t, 1, counts[KindSource])

	require.NoError(t, r.Unregister(h))
	assert.Equal(t, 0, counts[KindSource])

	stats := r.Stats()
	assert.Equal(t, 1, stats[KindDisplay])
	assert.Equal(t, 0, stats[KindFilter])
}

func TestCloseTearsDownEverything(t *testing.T) {
	r := New(nil)

	src := &closable{}
	disp := &closable{}
	r.Register(KindSource, "synthetic", src)
	r.Register(KindDisplay, "time", disp)

	require.NoError(t, r.Close())
	assert.Equal(t, 0, r.Len())
	assert.True(t, src.closed)
	assert.True(t, disp.closed)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("filter")
	require.NoError(t, err)
	assert.Equal(t, KindFilter, k)

	_, err = ParseKind("widget")
	assert.Error(t, err)
}

func TestConcurrentRegistration(t *testing.T) {
	r := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h, err := r.Register(KindFilter, "gain", &closable{})
				if err != nil {
					t.Errorf("register failed: %v", err)
					return
				}
				if j%2 == 0 {
					if err := r.Unregister(h); err != nil {
						t.Errorf("unregister failed: %v", err)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 16*25, r.Len())
}
