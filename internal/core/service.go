package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/Vovanwotkd/labels-britannika/internal/dish"
	"github.com/Vovanwotkd/labels-britannika/internal/label"
)

// OrderItem is one line of a kitchen ticket as submitted by the caller.
type OrderItem struct {
	OrderItemRef string `json:"order_item_ref"`
	Code         string `json:"code" binding:"required"`
	Quantity     int    `json:"quantity"`
	TemplateID   int64  `json:"template_id"`
}

// PrintService expands order items into print jobs. Each physical label is
// its own job: quantity copies of the main label plus one label per extra
// per copy, so a single stuck label never blocks the rest of the ticket.
type PrintService struct {
	store      JobStore
	dishes     dish.Resolver
	maxRetries int
}

func NewPrintService(store JobStore, dishes dish.Resolver, maxRetries int) *PrintService {
	return &PrintService{store: store, dishes: dishes, maxRetries: maxRetries}
}

// EnqueueOrderItem resolves the dish once, snapshots it into each job and
// returns the ids of every enqueued label in print order.
func (s *PrintService) EnqueueOrderItem(ctx context.Context, item OrderItem) ([]int64, error) {
	d, err := s.dishes.Resolve(ctx, item.Code)
	if err != nil {
		return nil, err
	}

	quantity := item.Quantity
	if quantity < 1 {
		quantity = 1
	}

	main := *d
	main.Extras = nil
	mainJSON, err := json.Marshal(&main)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot dish %s: %w", item.Code, err)
	}

	extraJSON := make([]string, 0, len(d.Extras))
	for i := range d.Extras {
		snap, err := json.Marshal(&d.Extras[i])
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot extra for dish %s: %w", item.Code, err)
		}
		extraJSON = append(extraJSON, string(snap))
	}

	ids := make([]int64, 0, quantity*(1+len(extraJSON)))
	for copyN := 0; copyN < quantity; copyN++ {
		id, err := s.enqueueOne(item, label.KindMain, string(mainJSON))
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)

		for _, snap := range extraJSON {
			id, err := s.enqueueOne(item, label.KindExtra, snap)
			if err != nil {
				return ids, err
			}
			ids = append(ids, id)
		}
	}

	log.Printf("[print] order item %s (%s): enqueued %d labels", item.OrderItemRef, item.Code, len(ids))
	return ids, nil
}

// EnqueueTestLabel queues a label with canned dish data so staff can verify
// paper alignment and the printer link without touching the menu database.
func (s *PrintService) EnqueueTestLabel(templateID int64) (int64, error) {
	sample := dish.DishData{
		Name:     "Тестовая этикетка",
		Code:     "9999999",
		WeightG:  250,
		Protein:  f64(12.5),
		Fat:      f64(8.3),
		Carbs:    f64(31.2),
		Calories: f64(262),
		Ingredients: []string{
			"мука пшеничная", "вода", "соль", "дрожжи",
		},
	}
	snap, err := json.Marshal(&sample)
	if err != nil {
		return 0, fmt.Errorf("failed to snapshot test dish: %w", err)
	}

	return s.store.Enqueue(&Job{
		OrderItemRef: "test",
		Kind:         label.KindMain,
		TemplateID:   templateID,
		DishJSON:     string(snap),
		MaxRetries:   s.maxRetries,
	})
}

func (s *PrintService) enqueueOne(item OrderItem, kind label.LabelKind, dishJSON string) (int64, error) {
	job := &Job{
		OrderItemRef: item.OrderItemRef,
		Kind:         kind,
		TemplateID:   item.TemplateID,
		DishJSON:     dishJSON,
		MaxRetries:   s.maxRetries,
	}
	id, err := s.store.Enqueue(job)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue %s label for %s: %w", kind, item.Code, err)
	}
	return id, nil
}

func f64(v float64) *float64 { return &v }
