// Package pacrunner evaluates PAC scripts with a JavaScript engine and the
// standard PAC helper functions. Name resolution is not performed: only IP
// literals and localhost resolve.
package pacrunner

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"

	"switchpac/internal/ipaddr"
	"switchpac/internal/logger"
)

// DefaultTimeout bounds a single FindProxyForURL call.
const DefaultTimeout = 2 * time.Second

var ErrNoFindProxy = errors.New("script does not define FindProxyForURL")

// Runner holds a loaded script. It is safe for concurrent use; calls are
// serialised.
type Runner struct {
	Timeout time.Duration

	mu sync.Mutex
	vm *goja.Runtime
	fn goja.Callable
}

// New loads script and looks up its FindProxyForURL function.
func New(script string) (*Runner, error) {
	vm := goja.New()
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"dnsResolve": func(call goja.FunctionCall) goja.Value {
			if ip := resolve(call.Argument(0).String()); ip != "" {
				return vm.ToValue(ip)
			}
			return goja.Null()
		},
		"myIpAddress": func(goja.FunctionCall) goja.Value {
			return vm.ToValue("127.0.0.1")
		},
		"alert": func(call goja.FunctionCall) goja.Value {
			logger.L().Infof("PAC alert: %s", call.Argument(0).String())
			return goja.Undefined()
		},
	} {
		if err := vm.Set(name, fn); err != nil {
			return nil, err
		}
	}

	if _, err := vm.RunString(prelude); err != nil {
		return nil, fmt.Errorf("load PAC builtins: %w", err)
	}

	r := &Runner{Timeout: DefaultTimeout, vm: vm}
	if err := r.guard(func() error {
		_, err := vm.RunString(script)
		return err
	}); err != nil {
		return nil, fmt.Errorf("load PAC script: %w", err)
	}

	fn, ok := goja.AssertFunction(vm.Get("FindProxyForURL"))
	if !ok {
		return nil, ErrNoFindProxy
	}
	r.fn = fn
	return r, nil
}

// FindProxyForURL calls the script's entry point.
func (r *Runner) FindProxyForURL(url, host string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result string
	err := r.guard(func() error {
		v, err := r.fn(goja.Undefined(), r.vm.ToValue(url), r.vm.ToValue(host))
		if err != nil {
			return err
		}
		if goja.IsUndefined(v) || goja.IsNull(v) {
			return errors.New("FindProxyForURL returned no value")
		}
		result = v.String()
		return nil
	})
	return result, err
}

// guard runs f, interrupting the VM when it runs past the timeout.
func (r *Runner) guard(f func() error) error {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.AfterFunc(timeout, func() {
		r.vm.Interrupt("timeout")
	})
	defer func() {
		timer.Stop()
		r.vm.ClearInterrupt()
	}()

	err := f()
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("PAC script exceeded %v", timeout)
	}
	return err
}

// Run loads script and evaluates FindProxyForURL(url, host) once.
func Run(script, url, host string) (string, error) {
	r, err := New(script)
	if err != nil {
		return "", err
	}
	return r.FindProxyForURL(url, host)
}

func resolve(host string) string {
	if host == "localhost" {
		return "127.0.0.1"
	}
	if addr := ipaddr.Parse(host); addr != nil {
		return addr.Normalized
	}
	return ""
}
