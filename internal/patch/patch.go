// Package patch stores and applies code for the self-modifiable region. The
// region is a standalone Go "package main" source kept in the data system and
// checked with the yaegi interpreter before every write.
package patch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"github.com/rcliao/tai/internal/store"
)

// Namespace holds one key per region.
const Namespace = "modifiable"

// DefaultRegion is the region the chat pipeline evolves.
const DefaultRegion = "modifiable"

// ErrInvalidCode is returned when proposed code fails validation.
var ErrInvalidCode = errors.New("invalid region code")

// ValidateTimeout bounds the trial evaluation of proposed code.
var ValidateTimeout = 10 * time.Second

// Applier reads and replaces region code.
type Applier interface {
	GetCode(ctx context.Context, region string) (string, error)
	Modify(ctx context.Context, region, code string) error
}

// KV is the subset of the data system the region store needs.
type KV interface {
	LoadData(ctx context.Context, key, ns string, encrypted bool) (json.RawMessage, error)
	SaveData(ctx context.Context, key string, value any, ns string, encrypted bool) error
}

// Regions keeps region code in a KV. It implements Applier.
type Regions struct {
	kv      KV
	allowed map[string]bool
	log     *zap.Logger
}

// DefaultImports is the import allowlist for region code.
var DefaultImports = []string{
	"bytes", "encoding/base64", "encoding/json", "errors", "fmt", "math",
	"path", "regexp", "sort", "strconv", "strings", "time", "unicode",
}

// NewRegions creates a region store. A nil allowlist selects DefaultImports.
func NewRegions(kv KV, allowed []string, log *zap.Logger) *Regions {
	if allowed == nil {
		allowed = DefaultImports
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Regions{kv: kv, allowed: make(map[string]bool, len(allowed)), log: log}
	for _, p := range allowed {
		r.allowed[p] = true
	}
	return r
}

// GetCode returns the region's current code, or SeedCode if it was never
// written.
func (r *Regions) GetCode(ctx context.Context, region string) (string, error) {
	raw, err := r.kv.LoadData(ctx, region, Namespace, false)
	if errors.Is(err, store.ErrNotFound) {
		return SeedCode, nil
	}
	if err != nil {
		return "", fmt.Errorf("load region %s: %w", region, err)
	}
	var code string
	if err := json.Unmarshal(raw, &code); err != nil {
		return "", fmt.Errorf("decode region %s: %w", region, err)
	}
	return code, nil
}

// Modify validates code and stores it as the region's new version.
func (r *Regions) Modify(ctx context.Context, region, code string) error {
	if err := r.Validate(ctx, code); err != nil {
		return err
	}
	if err := r.kv.SaveData(ctx, region, code, Namespace, false); err != nil {
		return fmt.Errorf("save region %s: %w", region, err)
	}
	r.log.Info("region modified", zap.String("region", region), zap.Int("bytes", len(code)))
	return nil
}

// Validate checks that code is a package main source importing only allowed
// packages and that the interpreter accepts it within ValidateTimeout.
func (r *Regions) Validate(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCode)
	}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "region.go", code, parser.ImportsOnly)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}
	if f.Name.Name != "main" {
		return fmt.Errorf("%w: package %s, want main", ErrInvalidCode, f.Name.Name)
	}
	var forbidden []string
	for _, imp := range f.Imports {
		p, _ := strconv.Unquote(imp.Path.Value)
		if !r.allowed[p] {
			forbidden = append(forbidden, p)
		}
	}
	if len(forbidden) > 0 {
		sort.Strings(forbidden)
		return fmt.Errorf("%w: forbidden imports %v", ErrInvalidCode, forbidden)
	}

	i, err := r.interpreter(io.Discard)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, ValidateTimeout)
	defer cancel()
	if _, err := i.EvalWithContext(ctx, code); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCode, err)
	}
	return nil
}

// Run evaluates the region's code followed by snippet and returns what they
// wrote to stdout, followed by the snippet's value if it has one. The snippet
// runs in the region's package scope, so it can call the region's functions
// directly.
func (r *Regions) Run(ctx context.Context, region, snippet string) (string, error) {
	code, err := r.GetCode(ctx, region)
	if err != nil {
		return "", err
	}

	var out bytes.Buffer
	i, err := r.interpreter(&out)
	if err != nil {
		return "", err
	}
	_, exprErr := parser.ParseExpr(snippet)
	isExpr := exprErr == nil

	type result struct {
		err error
	}
	done := make(chan result, 1)
	go func() {
		if _, err := i.EvalWithContext(ctx, code); err != nil {
			done <- result{fmt.Errorf("eval region: %w", err)}
			return
		}
		if strings.TrimSpace(snippet) == "" {
			done <- result{}
			return
		}
		v, err := i.EvalWithContext(ctx, snippet)
		if err != nil {
			done <- result{fmt.Errorf("eval snippet: %w", err)}
			return
		}
		if isExpr && printable(v) {
			fmt.Fprintln(&out, v.Interface())
		}
		done <- result{}
	}()

	select {
	case res := <-done:
		return out.String(), res.err
	case <-ctx.Done():
		return "", fmt.Errorf("run region %s: %w", region, ctx.Err())
	}
}

// printable reports whether a snippet's value is a result worth echoing.
// Calls without results evaluate to an internal pointer, and func values are
// never results.
func printable(v reflect.Value) bool {
	if !v.IsValid() || !v.CanInterface() {
		return false
	}
	switch v.Kind() {
	case reflect.Func, reflect.Pointer, reflect.UnsafePointer, reflect.Chan:
		return false
	}
	return true
}

func (r *Regions) interpreter(stdout io.Writer) (*interp.Interpreter, error) {
	i := interp.New(interp.Options{Stdout: stdout, Stderr: stdout})
	symbols := make(interp.Exports, len(r.allowed))
	for key, syms := range stdlib.Symbols {
		// keys look like "strings/strings"; some carry no path at all
		idx := strings.LastIndex(key, "/")
		if idx < 0 {
			continue
		}
		if r.allowed[key[:idx]] {
			symbols[key] = syms
		}
	}
	if err := i.Use(symbols); err != nil {
		return nil, fmt.Errorf("load region symbols: %w", err)
	}
	return i, nil
}
