package sim

import "sync"

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

// A Component is a element that is being simulated.
type Component interface {
	Named
	Handler
	Hookable
	PortOwner

	NotifyRecv(port Port)
	NotifyPortFree(port Port)
}

// ComponentBase provides some functions that other component can use.
type ComponentBase struct {
	HookableBase
	PortOwnerBase
	sync.Mutex

	name string
}

// NewComponentBase creates a new ComponentBase
func NewComponentBase(name string) *ComponentBase {
	c := new(ComponentBase)
	c.name = name
	c.PortOwnerBase = NewPortOwnerBase()
	return c
}

// Name returns the name of the component.
func (c *ComponentBase) Name() string {
	return c.name
}

// InvokeHook invokes the hooks of the component. Exposed so that the
// tracing helpers can treat components as hookable domains.
func (c *ComponentBase) InvokeHook(ctx HookCtx) {
	c.HookableBase.InvokeHook(ctx)
}
