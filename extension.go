package dispose

// Extension provides hooks into a scope's lifecycle.
type Extension interface {
	// Name returns the extension's name
	Name() string

	// Order determines extension execution order (lower = earlier)
	Order() int

	// Init is called when the extension is registered to a scope
	Init(scope *Scope) error

	// OnRegister is called after a disposable is registered on a scope
	OnRegister(scope *Scope, d AnyDisposable)

	// OnTeardownError handles teardown failures during unwind.
	// Returns true if the error was handled, false to aggregate it into
	// the scope's reported error.
	OnTeardownError(err *TeardownError) bool

	// Dispose is called after the scope's unwind finishes
	Dispose(scope *Scope) error
}

// BaseExtension provides default implementations for Extension methods
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a new base extension with the given name
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string {
	return e.name
}

func (e *BaseExtension) Order() int {
	return 100
}

func (e *BaseExtension) Init(scope *Scope) error {
	return nil
}

func (e *BaseExtension) OnRegister(scope *Scope, d AnyDisposable) {
}

func (e *BaseExtension) OnTeardownError(err *TeardownError) bool {
	return false
}

func (e *BaseExtension) Dispose(scope *Scope) error {
	return nil
}

// Observer receives manager-side lifecycle events. Managers and keyed
// managers notify observers outside their own locks; observers must not
// borrow from or release the notifying manager.
type Observer interface {
	// OnCreate fires when a manager lazily creates its underlying resource.
	OnCreate(manager, key string)
	// OnBorrow fires after a successful borrow; count is the new count.
	OnBorrow(manager, key string, count int)
	// OnRelease fires after a release that did not tear down; count is
	// the remaining count.
	OnRelease(manager, key string, count int)
	// OnTeardown fires after the zero-transition teardown ran; err is
	// nil on success.
	OnTeardown(manager, key string, err error)
}
