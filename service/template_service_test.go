package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ridebook/storage"
)

func TestTemplatesAreOwned(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.customer(t, "c1")
	other := h.customer(t, "c2")

	tpl, err := h.svc.Template().Create(ctx, owner, " Weekly ", json.RawMessage(`{"hours":2}`))
	if err != nil {
		t.Fatal(err)
	}
	if tpl.Name != "Weekly" {
		t.Errorf("name = %q", tpl.Name)
	}

	if _, err := h.svc.Template().Update(ctx, other, tpl.ID, "Mine now", nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("update by other: err = %v", err)
	}
	if err := h.svc.Template().Delete(ctx, other, tpl.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("delete by other: err = %v", err)
	}
	if list, _ := h.svc.Template().List(ctx, other); len(list) != 0 {
		t.Errorf("other sees %d templates", len(list))
	}

	updated, err := h.svc.Template().Update(ctx, owner, tpl.ID, "Fortnightly", json.RawMessage(`{"hours":3}`))
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Fortnightly" || string(updated.Data) != `{"hours":3}` {
		t.Errorf("updated = %+v", updated)
	}

	if err := h.svc.Template().Delete(ctx, owner, tpl.ID); err != nil {
		t.Fatal(err)
	}
	if err := h.svc.Template().Delete(ctx, owner, tpl.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
}

func TestTemplateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.customer(t, "c1")

	if _, err := h.svc.Template().Create(ctx, owner, "", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("no name: err = %v", err)
	}
	if _, err := h.svc.Template().Create(ctx, owner, "x", json.RawMessage(`{broken`)); !errors.Is(err, ErrValidation) {
		t.Errorf("bad json: err = %v", err)
	}
	tpl, err := h.svc.Template().Create(ctx, owner, "empty", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(tpl.Data) != "{}" {
		t.Errorf("data = %s", tpl.Data)
	}
}
