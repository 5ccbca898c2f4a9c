package conduit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/Mindburn-Labs/effectshell/pkg/wire"
)

// VersionSection is the custom section a core module may carry with its
// semantic version.
const VersionSection = "core_version"

const wasmPageSize = 64 * 1024

var (
	ErrMissingExport    = errors.New("conduit: core module is missing a required export")
	ErrIncompatibleCore = errors.New("conduit: incompatible core version")
)

// WasmConfig controls how a core module is hosted.
type WasmConfig struct {
	// MemoryLimitBytes caps the module's linear memory. Zero leaves the
	// runtime default.
	MemoryLimitBytes uint64
	// VersionConstraint, when set, must be satisfied by the version recorded
	// in the module's core_version section. A module without the section is
	// rejected.
	VersionConstraint string
}

// WasmCore hosts a core compiled to WebAssembly.
//
// The module must export its linear memory as "memory" together with:
//
//	alloc(len i32) i32
//	dealloc(ptr i32, len i32)
//	process_event(ptr i32, len i32) i64
//	handle_response(id i32, ptr i32, len i32) i64
//	view() i64
//
// Calls that return data pack the result as ptr<<32 | len; the host copies the
// bytes out and hands the region back through dealloc.
type WasmCore struct {
	mu      sync.Mutex
	closed  bool
	runtime wazero.Runtime
	module  api.Module
	memory  api.Memory
	version string

	alloc, dealloc, process, resolve, view api.Function
}

// NewWasmCore compiles and instantiates wasm. WASI preview1 imports are
// provided with no filesystem, environment or arguments.
func NewWasmCore(ctx context.Context, wasm []byte, cfg WasmConfig) (*WasmCore, error) {
	rc := wazero.NewRuntimeConfig().
		WithCustomSections(true).
		WithCloseOnContextDone(true)
	if cfg.MemoryLimitBytes > 0 {
		pages := uint32(cfg.MemoryLimitBytes / wasmPageSize)
		if pages == 0 {
			pages = 1
		}
		rc = rc.WithMemoryLimitPages(pages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, rc)

	w, err := instantiate(ctx, r, wasm, cfg)
	if err != nil {
		_ = r.Close(ctx)
		return nil, err
	}
	return w, nil
}

func instantiate(ctx context.Context, r wazero.Runtime, wasm []byte, cfg WasmConfig) (*WasmCore, error) {
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		return nil, fmt.Errorf("conduit: wasi imports: %w", err)
	}

	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("conduit: compile core: %w", err)
	}

	version := moduleVersion(compiled)
	if err := checkVersion(version, cfg.VersionConstraint); err != nil {
		return nil, err
	}

	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithName("core").
		WithStartFunctions("_initialize"))
	if err != nil {
		return nil, fmt.Errorf("conduit: instantiate core: %w", err)
	}

	w := &WasmCore{runtime: r, module: mod, version: version}
	if w.memory = mod.ExportedMemory("memory"); w.memory == nil {
		return nil, fmt.Errorf("%w: memory", ErrMissingExport)
	}
	for name, dst := range map[string]*api.Function{
		"alloc":           &w.alloc,
		"dealloc":         &w.dealloc,
		"process_event":   &w.process,
		"handle_response": &w.resolve,
		"view":            &w.view,
	} {
		if *dst = mod.ExportedFunction(name); *dst == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingExport, name)
		}
	}
	return w, nil
}

func moduleVersion(m wazero.CompiledModule) string {
	for _, s := range m.CustomSections() {
		if s.Name() == VersionSection {
			return strings.TrimSpace(string(s.Data()))
		}
	}
	return ""
}

func checkVersion(version, constraint string) error {
	if constraint == "" {
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("conduit: version constraint %q: %w", constraint, err)
	}
	if version == "" {
		return fmt.Errorf("%w: module has no %s section", ErrIncompatibleCore, VersionSection)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrIncompatibleCore, version, err)
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrIncompatibleCore, v, constraint)
	}
	return nil
}

// Version returns the module's declared version, or "" if it has none.
func (w *WasmCore) Version() string { return w.version }

func (w *WasmCore) Process(ctx context.Context, event []byte) ([]byte, error) {
	return w.call(ctx, w.process, event, true)
}

func (w *WasmCore) Resolve(ctx context.Context, id wire.RequestID, response []byte) ([]byte, error) {
	return w.call(ctx, w.resolve, response, true, uint64(id))
}

func (w *WasmCore) View(ctx context.Context) ([]byte, error) {
	return w.call(ctx, w.view, nil, false)
}

func (w *WasmCore) call(ctx context.Context, fn api.Function, input []byte, withInput bool, lead ...uint64) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}

	params := append([]uint64(nil), lead...)
	if withInput {
		ptr, err := w.write(ctx, input)
		if err != nil {
			return nil, err
		}
		defer w.free(ctx, ptr, uint32(len(input)))
		params = append(params, uint64(ptr), uint64(len(input)))
	}

	res, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, fmt.Errorf("conduit: %s: %w", fn.Definition().Name(), err)
	}
	if len(res) != 1 {
		return nil, fmt.Errorf("conduit: %s returned %d values", fn.Definition().Name(), len(res))
	}
	return w.take(ctx, res[0])
}

func (w *WasmCore) write(ctx context.Context, b []byte) (uint32, error) {
	res, err := w.alloc.Call(ctx, uint64(len(b)))
	if err != nil {
		return 0, fmt.Errorf("conduit: alloc: %w", err)
	}
	ptr := uint32(res[0])
	if !w.memory.Write(ptr, b) {
		return 0, fmt.Errorf("conduit: write %d bytes at %#x out of range", len(b), ptr)
	}
	return ptr, nil
}

func (w *WasmCore) take(ctx context.Context, packed uint64) ([]byte, error) {
	ptr, n := uint32(packed>>32), uint32(packed)
	view, ok := w.memory.Read(ptr, n)
	if !ok {
		return nil, fmt.Errorf("conduit: result at %#x+%d out of range", ptr, n)
	}
	out := make([]byte, n)
	copy(out, view)
	w.free(ctx, ptr, n)
	return out, nil
}

func (w *WasmCore) free(ctx context.Context, ptr, n uint32) {
	_, _ = w.dealloc.Call(ctx, uint64(ptr), uint64(n))
}

// Close releases the runtime. Calls after Close return ErrClosed.
func (w *WasmCore) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.runtime.Close(ctx)
}
