package tools_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/effective-security/agentic/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name string
	call func(ctx context.Context, input string) (*tools.Output, error)
}

func (t *fakeTool) Name() string        { return t.name }
func (t *fakeTool) Description() string { return "fake tool " + t.name }
func (t *fakeTool) Parameters() any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *fakeTool) Call(ctx context.Context, input string) (*tools.Output, error) {
	if t.call != nil {
		return t.call(ctx, input)
	}
	return tools.TextOutput("ok:" + input), nil
}

func Test_Registry_RegisterAndGet(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "Echo"}))

	// lookup is case-insensitive
	assert.NotNil(t, r.Get("echo"))
	assert.NotNil(t, r.Get("ECHO"))
	assert.Nil(t, r.Get("missing"))

	err := r.Register(&fakeTool{name: "echo"})
	require.Error(t, err)
	assert.ErrorIs(t, err, tools.ErrDuplicateName)

	defs := r.List()
	require.Len(t, defs, 1)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "Echo", defs[0].Function.Name)
	assert.NotEmpty(t, defs[0].Function.Description)
}

func Test_Registry_Remove(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "a"}))
	require.NoError(t, r.Register(&fakeTool{name: "b"}))

	r.Remove("A", "unknown")
	assert.Nil(t, r.Get("a"))
	assert.NotNil(t, r.Get("b"))
}

func Test_Registry_Namespaces(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "local"}))

	r.SetNamespace("srv", []tools.ITool{
		&fakeTool{name: "srv__alpha"},
		&fakeTool{name: "srv__beta"},
	})

	names := r.Names()
	sort.Strings(names)
	assert.ElementsMatch(t, []string{"local", "srv__alpha", "srv__beta"}, names)

	// tools listed without a namespace are stored under the qualified key
	r.SetNamespace("other", []tools.ITool{&fakeTool{name: "delta"}})
	assert.NotNil(t, r.Get("other__delta"))
	assert.Equal(t, 1, r.RemoveNamespace("other"))

	// refresh replaces the namespace; stale entries do not survive
	r.SetNamespace("srv", []tools.ITool{
		&fakeTool{name: "srv__gamma"},
	})
	assert.Nil(t, r.Get("srv__alpha"))
	assert.Nil(t, r.Get("srv__beta"))
	assert.NotNil(t, r.Get("srv__gamma"))
	assert.NotNil(t, r.Get("local"))

	// namespaced tools never collide with same-named locals
	require.NoError(t, r.Register(&fakeTool{name: "gamma"}))
	assert.NotNil(t, r.Get("gamma"))
	assert.NotNil(t, r.Get("srv__gamma"))

	removed := r.RemoveNamespace("srv")
	assert.Equal(t, 1, removed)
	assert.Nil(t, r.Get("srv__gamma"))
	assert.NotNil(t, r.Get("gamma"))

	// idempotent
	assert.Equal(t, 0, r.RemoveNamespace("srv"))
}

func Test_Registry_Execute(t *testing.T) {
	ctx := context.Background()
	r := tools.NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "echo"}))
	require.NoError(t, r.Register(&fakeTool{
		name: "fails",
		call: func(ctx context.Context, input string) (*tools.Output, error) {
			return nil, assert.AnError
		},
	}))
	require.NoError(t, r.Register(&fakeTool{
		name: "panics",
		call: func(ctx context.Context, input string) (*tools.Output, error) {
			panic("boom")
		},
	}))

	out := r.Execute(ctx, "echo", `{"x":1}`)
	require.NotNil(t, out)
	assert.False(t, out.IsError)
	assert.Equal(t, `ok:{"x":1}`, out.Content)

	// unknown tool resolves to an error result, never a thrown error
	out = r.Execute(ctx, "no_such_tool", "{}")
	require.NotNil(t, out)
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, "tool not found")

	out = r.Execute(ctx, "fails", "{}")
	require.NotNil(t, out)
	assert.True(t, out.IsError)

	out = r.Execute(ctx, "panics", "{}")
	require.NotNil(t, out)
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, "panicked")
}

func Test_QualifiedName(t *testing.T) {
	assert.Equal(t, "srv__tool", tools.QualifiedName("srv", "tool"))

	server, tool, ok := tools.SplitQualified("srv__tool")
	assert.True(t, ok)
	assert.Equal(t, "srv", server)
	assert.Equal(t, "tool", tool)

	_, _, ok = tools.SplitQualified("plain")
	assert.False(t, ok)
}

func Test_Registry_ConcurrentExecuteDuringRefresh(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "local"}))
	r.SetNamespace("srv", []tools.ITool{
		&fakeTool{name: "srv__alpha"},
		&fakeTool{name: "srv__beta"},
	})

	ctx := context.Background()
	done := make(chan struct{})
	var wg sync.WaitGroup

	// executors race against the writers below; every call must resolve to
	// an output, found or not
	for _, name := range []string{"local", "srv__alpha", "srv__beta"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				out := r.Execute(ctx, name, "{}")
				if out.IsError {
					assert.Contains(t, out.Content, "tool not found")
				} else {
					assert.Equal(t, "ok:{}", out.Content)
				}
			}
		}()
	}

	for range 200 {
		r.SetNamespace("srv", []tools.ITool{
			&fakeTool{name: "srv__alpha"},
			&fakeTool{name: "srv__gamma"},
		})
		r.RemoveNamespace("srv")
		r.SetNamespace("srv", []tools.ITool{
			&fakeTool{name: "srv__alpha"},
			&fakeTool{name: "srv__beta"},
		})
		_ = r.Names()
		_ = r.List()
	}
	close(done)
	wg.Wait()

	// the survivor of registration churn is never touched
	assert.NotNil(t, r.Get("local"))
	assert.NotNil(t, r.Get("srv__alpha"))
}
