package resource

import (
	"context"
	"time"
)

// Canonical Comanda resource names. The registry is not limited to these;
// they are the resources every terminal keeps in sync.
const (
	// ResourceOrders is the live order queue. Critical: kitchen and counter
	// displays must track it even when notifications are blocked.
	ResourceOrders = "orders"

	// ResourceBills is the open and settled bill list.
	ResourceBills = "bills"

	// ResourceMenu is the menu with categories, items, and prices.
	ResourceMenu = "menu"

	// ResourceInventory is the stock level table.
	ResourceInventory = "inventory"

	// ResourceTables is the floor plan and table occupancy state.
	ResourceTables = "tables"

	// ResourceStaff is the staff roster and role assignments.
	ResourceStaff = "staff"

	// ResourceSettings is the restaurant-wide settings document.
	ResourceSettings = "settings"

	// ResourcePrinters is the printer routing configuration.
	ResourcePrinters = "printers"
)

// OrdersDebounceWindow is the shortened debounce window for the order queue.
// A new order must reach the kitchen display quickly, so the quiet window is
// tighter than the default.
const OrdersDebounceWindow = 100 * time.Millisecond

// StandardNames returns the canonical resource names in their conventional
// registration order.
func StandardNames() []string {
	return []string{
		ResourceOrders,
		ResourceBills,
		ResourceMenu,
		ResourceInventory,
		ResourceTables,
		ResourceStaff,
		ResourceSettings,
		ResourcePrinters,
	}
}

// Store is the minimal per-resource read interface a backend adapter
// implements to feed StandardRegistry. It is satisfied by the application's
// database client wrapper.
type Store interface {
	// Fetch pulls the full current state for the named resource.
	Fetch(ctx context.Context, name string) (Snapshot, error)
}

// Sink receives fresh snapshots. It is satisfied by the application's state
// container. Writes for different resources may arrive concurrently.
type Sink interface {
	// Put overwrites the held snapshot for the named resource.
	Put(name string, snapshot Snapshot)
}

// StandardRegistry builds a registry covering the canonical Comanda
// resources, wired to the given store and sink. Orders is registered as the
// critical resource with its shortened debounce window.
func StandardRegistry(store Store, sink Sink) (*Registry, error) {
	reg := NewRegistry()
	for _, name := range StandardNames() {
		res := Resource{
			Name:    name,
			Refetch: fetchFunc(store, name),
			Apply:   applyFunc(sink, name),
		}
		if name == ResourceOrders {
			res.Critical = true
			res.DebounceWindow = OrdersDebounceWindow
		}
		if err := reg.Register(res); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func fetchFunc(store Store, name string) RefetchFunc {
	return func(ctx context.Context) (Snapshot, error) {
		return store.Fetch(ctx, name)
	}
}

func applyFunc(sink Sink, name string) ApplyFunc {
	return func(snapshot Snapshot) {
		sink.Put(name, snapshot)
	}
}
