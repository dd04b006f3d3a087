package state

import (
	"fmt"
	"slices"

	"github.com/matheus3301/clinicsync/internal/model"
)

type inventoryPayload struct {
	Item    model.InventoryItem    `json:"item"`
	Batches []model.InventoryBatch `json:"batches,omitempty"`
}

func (r Reducer) addInventoryItem(s model.Snapshot, a AddInventoryItem) Result {
	if !signedIn(s) {
		return unchanged(s)
	}
	item := a.Item
	r.stamp(s, &item.ID, &item.TenantID, &item.BranchID)
	if indexByID(s.Inventory, item.ID) >= 0 {
		return unchanged(s)
	}

	batches := make([]model.InventoryBatch, 0, len(a.Batches))
	for _, b := range a.Batches {
		r.stamp(s, &b.ID, &b.TenantID, nil)
		b.ItemID = item.ID
		b.Quantity = max(b.Quantity, 0)
		batches = append(batches, b)
	}
	if len(batches) > 0 {
		item.Stock = batchSum(batches, item.ID)
	}
	item.Stock = max(item.Stock, 0)

	next := s.Clone()
	next.Inventory = append(next.Inventory, item)
	next.Batches = append(next.Batches, batches...)
	return r.mutated(next, r.effect("POST", "/inventory", inventoryPayload{Item: item, Batches: batches}),
		"CREATE_INVENTORY_ITEM", fmt.Sprintf("Added %s with stock %d", item.Name, item.Stock))
}

// restockItem adds a batch and recomputes the item's stock as its batch sum.
func (r Reducer) restockItem(s model.Snapshot, a RestockItem) Result {
	i := indexByID(s.Inventory, a.ItemID)
	if !signedIn(s) || i < 0 || a.Batch.Quantity <= 0 {
		return unchanged(s)
	}
	b := a.Batch
	r.stamp(s, &b.ID, &b.TenantID, nil)
	b.ItemID = a.ItemID
	if indexByID(s.Batches, b.ID) >= 0 {
		return unchanged(s)
	}

	next := s.Clone()
	next.Batches = append(next.Batches, b)
	next.Inventory[i].Stock = batchSum(next.Batches, a.ItemID)
	return r.mutated(next, r.effect("POST", "/batches", b), "RESTOCK_ITEM",
		fmt.Sprintf("Restocked %s with %d", next.Inventory[i].Name, b.Quantity))
}

func (r Reducer) makeSale(s model.Snapshot, a MakeSale) Result {
	if !signedIn(s) {
		return unchanged(s)
	}
	sale := a.Sale
	r.stamp(s, &sale.ID, &sale.TenantID, &sale.BranchID)
	if indexByID(s.Sales, sale.ID) >= 0 {
		return unchanged(s)
	}
	sale.Lines = slices.DeleteFunc(slices.Clone(sale.Lines), func(l model.SaleLine) bool {
		return l.Quantity <= 0
	})
	if len(sale.Lines) == 0 {
		return unchanged(s)
	}
	if sale.Total == 0 {
		for _, l := range sale.Lines {
			sale.Total += int64(l.Quantity) * l.UnitPrice
		}
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = r.now()
	}

	next := s.Clone()
	for _, l := range sale.Lines {
		depleteStock(&next, l.ItemID, l.Quantity)
	}
	next.Sales = append(next.Sales, sale)
	return r.mutated(next, r.effect("POST", "/sales", sale), "CREATE_SALE",
		fmt.Sprintf("Sale of %d line(s) total %d", len(sale.Lines), sale.Total))
}

// depleteStock removes qty units of itemID from next. Batched items consume
// the earliest-expiring batches first; stock never goes negative.
func depleteStock(next *model.Snapshot, itemID string, qty int) {
	i := indexByID(next.Inventory, itemID)
	if i < 0 {
		return
	}
	if !hasBatches(next.Batches, itemID) {
		next.Inventory[i].Stock = max(next.Inventory[i].Stock-qty, 0)
		return
	}
	next.Batches = depleteFIFO(next.Batches, itemID, qty)
	next.Inventory[i].Stock = batchSum(next.Batches, itemID)
}

// depleteFIFO returns a copy of batches with qty units of itemID consumed in
// ascending expiry order. Batches with equal expiry are consumed in slice
// order. Demand beyond the available quantity is ignored.
func depleteFIFO(batches []model.InventoryBatch, itemID string, qty int) []model.InventoryBatch {
	out := slices.Clone(batches)
	var idx []int
	for i, b := range out {
		if b.ItemID == itemID {
			idx = append(idx, i)
		}
	}
	slices.SortStableFunc(idx, func(x, y int) int {
		return out[x].ExpiresAt.Compare(out[y].ExpiresAt)
	})
	for _, i := range idx {
		if qty <= 0 {
			break
		}
		take := min(max(out[i].Quantity, 0), qty)
		out[i].Quantity = max(out[i].Quantity-take, 0)
		qty -= take
	}
	return out
}

func batchSum(batches []model.InventoryBatch, itemID string) int {
	sum := 0
	for _, b := range batches {
		if b.ItemID == itemID {
			sum += max(b.Quantity, 0)
		}
	}
	return sum
}

func hasBatches(batches []model.InventoryBatch, itemID string) bool {
	return slices.ContainsFunc(batches, func(b model.InventoryBatch) bool { return b.ItemID == itemID })
}
