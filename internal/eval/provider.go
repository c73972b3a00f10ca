package eval

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ResolvedOptions are resource options after expression evaluation.
// Referenced resources are recorded by logical name.
type ResolvedOptions struct {
	DependsOn   []string
	Protect     bool
	Provider    string
	Parent      string
	DeletedWith string

	IgnoreChanges           []string
	ReplaceOnChanges        []string
	AdditionalSecretOutputs []string

	Version           string
	PluginDownloadURL string
	Import            string

	RetainOnDelete      bool
	DeleteBeforeReplace bool
}

// RegistrationIntent is one resource the program wants registered, in the
// order registration was requested.
type RegistrationIntent struct {
	Name  string
	Token string
	// PhysicalName is the provider-facing name, defaulting to Name.
	PhysicalName string
	URN          string

	Inputs  []Field
	Options ResolvedOptions

	// ReadID is set for external reads; such intents fetch state instead
	// of creating anything.
	ReadID string
}

// InvokeCallOpts carry the evaluated options of a function call.
type InvokeCallOpts struct {
	Provider          string
	Parent            string
	Version           string
	PluginDownloadURL string
}

// Provider is the external surface the evaluator drives. Implementations
// must be safe for concurrent use; the scheduler calls them from multiple
// workers.
type Provider interface {
	// Register creates the resource described by the intent and returns
	// its state.
	Register(ctx context.Context, intent *RegistrationIntent) (ResourceState, error)
	// Read fetches the state of an existing resource by physical ID.
	Read(ctx context.Context, token, id string, inputs []Field) (ResourceState, error)
	// Invoke calls a provider function with evaluated arguments.
	Invoke(ctx context.Context, token string, args []Field, opts InvokeCallOpts) (Value, error)
}

// MockProvider is an in-memory Provider for tests and dry runs. Reads and
// invokes resolve against pre-seeded state; registrations mint fresh IDs.
type MockProvider struct {
	mu sync.Mutex

	// readState maps "token/id" to the outputs a Read returns.
	readState map[string]ResourceState
	// invokeResults maps function tokens to their canned results.
	invokeResults map[string]Value

	registered []*RegistrationIntent
}

// NewMockProvider returns an empty mock.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		readState:     map[string]ResourceState{},
		invokeResults: map[string]Value{},
	}
}

// SeedRead registers the state a Read of token/id returns.
func (m *MockProvider) SeedRead(token, id string, outputs []Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readState[token+"/"+id] = ResourceState{ID: id, Outputs: outputs}
}

// SeedInvoke registers the result an Invoke of token returns.
func (m *MockProvider) SeedInvoke(token string, result Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invokeResults[token] = result
}

// Registered returns the intents registered so far, in call order.
func (m *MockProvider) Registered() []*RegistrationIntent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*RegistrationIntent{}, m.registered...)
}

// Register records the intent and echoes the inputs back as outputs with a
// fresh ID.
func (m *MockProvider) Register(_ context.Context, intent *RegistrationIntent) (ResourceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, intent)
	return ResourceState{
		ID:      intent.PhysicalName + "-" + uuid.NewString(),
		Outputs: intent.Inputs,
	}, nil
}

// Read returns seeded state or fails the way a missing resource would.
func (m *MockProvider) Read(_ context.Context, token, id string, _ []Field) (ResourceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.readState[token+"/"+id]
	if !ok {
		return ResourceState{}, fmt.Errorf("resource '%s' with id '%s' not found", token, id)
	}
	return state, nil
}

// Invoke returns the seeded result for the token.
func (m *MockProvider) Invoke(_ context.Context, token string, _ []Field, _ InvokeCallOpts) (Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.invokeResults[token]
	if !ok {
		return Value{}, fmt.Errorf("unknown function '%s'", token)
	}
	return result, nil
}
