package action

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Dispatcher routes named calls to registered handlers and converts every
// failure mode into the envelope. One failing call must never affect the
// transport loop or any other in-flight call.
type Dispatcher struct {
	reg *Registry
	log *slog.Logger
}

func NewDispatcher(reg *Registry, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{reg: reg, log: log}
}

// Dispatch validates args against the action's descriptor and invokes its
// handler. Always returns a non-nil result and never panics.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler panic", "action", name, "panic", r)
			res = Fail(Errorf(KindUnknown, "internal fault in action %s: %v", name, r))
		}
	}()

	desc, ok := d.reg.Lookup(name)
	if !ok {
		return Fail(Errorf(KindUnknownAction, "unknown action: %s", name))
	}
	if err := checkArgs(desc, args); err != nil {
		return Fail(err)
	}

	start := time.Now()
	out, err := desc.Handler(ctx, Args(args))
	if err != nil {
		d.log.Warn("action failed", "action", name, "elapsed", time.Since(start), "err", err)
		return Fail(AsError(err))
	}
	d.log.Debug("action completed", "action", name, "elapsed", time.Since(start))
	if out == nil {
		return OK()
	}
	return out
}

// checkArgs enforces presence and shape of every declared field before the
// handler runs. The offending field is always named in the message.
func checkArgs(desc Descriptor, args map[string]any) *Error {
	for _, f := range desc.Fields {
		v, present := args[f.Name]
		if !present || v == nil {
			if f.Required {
				return Errorf(KindInvalidArgument, "missing required field: %s", f.Name)
			}
			continue
		}
		switch f.Type {
		case TypeString:
			s, ok := v.(string)
			if !ok {
				return Errorf(KindInvalidArgument, "field %s must be a string", f.Name)
			}
			if f.Required && strings.TrimSpace(s) == "" {
				return Errorf(KindInvalidArgument, "missing required field: %s", f.Name)
			}
		case TypeObject:
			if _, ok := v.(map[string]any); !ok {
				return Errorf(KindInvalidArgument, "field %s must be an object", f.Name)
			}
		case TypeArray:
			if _, ok := v.([]any); !ok {
				return Errorf(KindInvalidArgument, "field %s must be an array", f.Name)
			}
		}
	}
	return nil
}
