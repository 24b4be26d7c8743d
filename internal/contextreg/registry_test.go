package contextreg

import (
	"testing"

	"browserctl/pkg/apierrors"
	"browserctl/pkg/models"
)

func TestCreateAndGet(t *testing.T) {
	r := NewRegistry()
	c := r.Create("sess-1", models.ContextDefault, "browser-1")

	got, err := r.Get(c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SessionID != "sess-1" {
		t.Fatalf("SessionID = %q, want sess-1", got.SessionID)
	}
	if got.Status != models.ContextActive {
		t.Fatalf("Status = %v, want active", got.Status)
	}
}

func TestGetUnknownReturnsNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("does-not-exist")
	apiErr := apierrors.As(err)
	if apiErr == nil || apiErr.Kind != apierrors.KindNotFound {
		t.Fatalf("got %v, want NOT_FOUND", err)
	}
}

func TestCheckOwnership(t *testing.T) {
	r := NewRegistry()
	c := r.Create("sess-1", models.ContextDefault, "")

	if err := r.CheckOwnership(c.ID, "sess-1"); err != nil {
		t.Fatalf("CheckOwnership(owner): %v", err)
	}

	err := r.CheckOwnership(c.ID, "sess-2")
	apiErr := apierrors.As(err)
	if apiErr == nil || apiErr.Kind != apierrors.KindAccessDenied {
		t.Fatalf("CheckOwnership(other session) = %v, want ACCESS_DENIED", err)
	}
}

func TestAddAndRemovePage(t *testing.T) {
	r := NewRegistry()
	c := r.Create("sess-1", models.ContextDefault, "")

	if err := r.AddPage(c.ID, "page-1"); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	got, _ := r.Get(c.ID)
	if len(got.PageIDs) != 1 || got.PageIDs[0] != "page-1" {
		t.Fatalf("PageIDs = %v, want [page-1]", got.PageIDs)
	}

	r.RemovePage(c.ID, "page-1")
	got, _ = r.Get(c.ID)
	if len(got.PageIDs) != 0 {
		t.Fatalf("PageIDs after remove = %v, want empty", got.PageIDs)
	}
}

func TestListBySession(t *testing.T) {
	r := NewRegistry()
	c1 := r.Create("sess-1", models.ContextDefault, "")
	c2 := r.Create("sess-1", models.ContextIncognito, "")
	r.Create("sess-2", models.ContextDefault, "")

	got := r.ListBySession("sess-1")
	if len(got) != 2 {
		t.Fatalf("len(ListBySession) = %d, want 2", len(got))
	}
	ids := map[string]bool{got[0].ID: true, got[1].ID: true}
	if !ids[c1.ID] || !ids[c2.ID] {
		t.Fatalf("ListBySession missing expected ids: %v", got)
	}
}

func TestDeleteReturnsPageIDsAndRemoves(t *testing.T) {
	r := NewRegistry()
	c := r.Create("sess-1", models.ContextDefault, "")
	_ = r.AddPage(c.ID, "page-1")
	_ = r.AddPage(c.ID, "page-2")

	pages, err := r.Delete(c.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("pages = %v, want 2 entries", pages)
	}

	if _, err := r.Get(c.ID); apierrors.As(err).Kind != apierrors.KindNotFound {
		t.Fatalf("context still present after Delete")
	}
	if got := r.ListBySession("sess-1"); len(got) != 0 {
		t.Fatalf("ListBySession after Delete = %v, want empty", got)
	}
}

func TestDeleteBySessionCascades(t *testing.T) {
	r := NewRegistry()
	c1 := r.Create("sess-1", models.ContextDefault, "")
	c2 := r.Create("sess-1", models.ContextDefault, "")
	_ = r.AddPage(c1.ID, "page-1")
	_ = r.AddPage(c2.ID, "page-2")
	r.Create("sess-2", models.ContextDefault, "")

	pages := r.DeleteBySession("sess-1")
	if len(pages) != 2 {
		t.Fatalf("pages = %v, want 2 entries", pages)
	}
	if got := r.ListBySession("sess-1"); len(got) != 0 {
		t.Fatalf("sess-1 contexts remain: %v", got)
	}
	if got := r.ListBySession("sess-2"); len(got) != 1 {
		t.Fatalf("sess-2 contexts wrongly removed: %v", got)
	}
}
