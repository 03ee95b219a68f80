package observe

import (
	"github.com/tbxark/formstate/fieldpath"
	"github.com/tbxark/formstate/intent"
	"github.com/tbxark/formstate/patch"
)

// Host returns the side effect target of the observed form. Its calls are
// queued as events and handled by Run after the current event, so it must
// only be used from a Listener.
func (o *Observer) Host() intent.Host {
	return host{o}
}

type host struct {
	o *Observer
}

func (h host) Reset() error {
	h.o.queue = append(h.o.queue, FormReset{})
	return nil
}

func (h host) UpdateField(name string, value any) error {
	path, err := fieldpath.Parse(name)
	if err != nil {
		return err
	}
	h.o.queue = append(h.o.queue, ValueChanged{
		Ops:          []patch.Operation{{Op: patch.OperationReplace, Path: patch.Pointer(path), Value: value}},
		Programmatic: true,
	})
	return nil
}
