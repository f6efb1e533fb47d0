package grouping

import "testing"

var catalog = []Document{
	{ID: 1, Name: "Contract.pdf"},
	{ID: 2, Name: "Amendment.pdf"},
}

func TestGroupCoversEveryCitationExactlyOnce(t *testing.T) {
	citations := []Citation{
		{ID: "c0", DocumentID: 1, Pages: []int{2}},
		{ID: "c1", DocumentID: 2, Pages: []int{5, 7}},
		{ID: "c2", DocumentID: 1, Pages: nil},
		{ID: "c3", DocumentID: 9, Pages: []int{1}}, // not in catalog
	}

	result := Group(citations, Selection{}, catalog)
	if len(result) != len(catalog) {
		t.Fatalf("expected %d document groups, got %d", len(catalog), len(result))
	}

	seen := map[string]int{}
	for _, dg := range result {
		for _, pg := range dg.PageGroups {
			seen[pg.CitationID]++
			if citations[pg.CitationIndex].ID != pg.CitationID {
				t.Errorf("citation index %d does not point back at %s", pg.CitationIndex, pg.CitationID)
			}
			if citations[pg.CitationIndex].DocumentID != dg.Document.ID {
				t.Errorf("citation %s grouped under wrong document %d", pg.CitationID, dg.Document.ID)
			}
		}
	}
	for _, id := range []string{"c0", "c1", "c2"} {
		if seen[id] != 1 {
			t.Errorf("citation %s appeared %d times, want 1", id, seen[id])
		}
	}
	if seen["c3"] != 0 {
		t.Error("citation referencing an unknown document must be excluded")
	}
}

func TestGroupSortStability(t *testing.T) {
	citations := []Citation{
		{ID: "a", DocumentID: 1, Pages: []int{2, 2}},
		{ID: "b", DocumentID: 1, Pages: []int{1, 3}},
		{ID: "c", DocumentID: 1, Pages: []int{2, 2}},
	}

	result := Group(citations, Selection{}, catalog)
	groups := result[0].PageGroups
	if len(groups) != 3 {
		t.Fatalf("expected 3 page groups, got %d", len(groups))
	}
	want := []string{"b", "a", "c"}
	for i, id := range want {
		if groups[i].CitationID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, groups[i].CitationID)
		}
	}
}

func TestGroupUnlocatedSortsLast(t *testing.T) {
	citations := []Citation{
		{ID: "unlocated", DocumentID: 1, Pages: nil},
		{ID: "located", DocumentID: 1, Pages: []int{999}},
	}

	groups := Group(citations, Selection{}, catalog)[0].PageGroups
	if groups[0].CitationID != "located" || groups[1].CitationID != "unlocated" {
		t.Fatalf("expected located before unlocated, got %s then %s", groups[0].CitationID, groups[1].CitationID)
	}
	if groups[1].FirstPage != UnlocatedPage || groups[1].LastPage != UnlocatedPage {
		t.Errorf("unlocated citation should carry the sentinel page, got [%d,%d]", groups[1].FirstPage, groups[1].LastPage)
	}
}

func TestGroupMultiPageBoundsBecomeOneGroup(t *testing.T) {
	citations := []Citation{
		{ID: "span", DocumentID: 1, Pages: []int{4, 2, 3}},
	}

	groups := Group(citations, Selection{}, catalog)[0].PageGroups
	if len(groups) != 1 {
		t.Fatalf("expected one spanning group, got %d", len(groups))
	}
	if groups[0].FirstPage != 2 || groups[0].LastPage != 4 {
		t.Errorf("expected range [2,4], got [%d,%d]", groups[0].FirstPage, groups[0].LastPage)
	}
}

func TestGroupSelectionExclusivity(t *testing.T) {
	citations := []Citation{
		{ID: "c0", DocumentID: 1, Pages: []int{3}},
		{ID: "c1", DocumentID: 1, Pages: []int{3}},
		{ID: "c2", DocumentID: 2, Pages: []int{3}},
	}
	// Page 3 would select several groups; the explicit citation wins.
	sel := Selection{CitationID: "c1", Page: 3, DocumentID: 1}

	selected := 0
	for _, dg := range Group(citations, sel, catalog) {
		for _, pg := range dg.PageGroups {
			if pg.Selected {
				selected++
				if pg.CitationID != "c1" {
					t.Errorf("wrong group selected: %s", pg.CitationID)
				}
			}
		}
	}
	if selected != 1 {
		t.Fatalf("expected exactly one selected group, got %d", selected)
	}
}

func TestGroupSelectionByPage(t *testing.T) {
	citations := []Citation{
		{ID: "c0", DocumentID: 1, Pages: []int{1}},
		{ID: "c1", DocumentID: 1, Pages: []int{2, 4}},
		{ID: "c2", DocumentID: 1, Pages: []int{5}},
		{ID: "other-doc", DocumentID: 2, Pages: []int{3}},
	}
	sel := Selection{Page: 3, DocumentID: 1}

	for _, dg := range Group(citations, sel, catalog) {
		for _, pg := range dg.PageGroups {
			want := pg.CitationID == "c1"
			if pg.Selected != want {
				t.Errorf("citation %s: selected=%v, want %v", pg.CitationID, pg.Selected, want)
			}
		}
	}
}

func TestGroupPageSelectionIgnoresOtherDocuments(t *testing.T) {
	citations := []Citation{
		{ID: "c0", DocumentID: 2, Pages: []int{3}},
	}
	sel := Selection{Page: 3, DocumentID: 1}

	result := Group(citations, sel, catalog)
	if result[1].PageGroups[0].Selected {
		t.Error("page groups of a non-displayed document must never be page-selected")
	}
}

func TestGroupAdjacencyFlags(t *testing.T) {
	citations := []Citation{
		{ID: "a", DocumentID: 1, Pages: []int{1}},
		{ID: "b", DocumentID: 1, Pages: []int{2, 4}},
		{ID: "c", DocumentID: 1, Pages: []int{3, 5}},
		{ID: "d", DocumentID: 1, Pages: []int{8}},
	}
	// Page 4 lies inside both b and c: both selected, a and d not.
	sel := Selection{Page: 4, DocumentID: 1}

	groups := Group(citations, sel, catalog)[0].PageGroups
	byID := map[string]PageGroup{}
	for _, pg := range groups {
		byID[pg.CitationID] = pg
	}

	if !byID["b"].Selected || !byID["c"].Selected || byID["a"].Selected || byID["d"].Selected {
		t.Fatalf("unexpected selection pattern: %+v", groups)
	}
	if !byID["b"].NextSelected {
		t.Error("b should report its selected successor")
	}
	if !byID["c"].PrevSelected {
		t.Error("c should report its selected predecessor")
	}
	if byID["b"].PrevSelected {
		t.Error("b's predecessor is unselected; flag must stay false")
	}
	if byID["c"].NextSelected {
		t.Error("c's successor is unselected; flag must stay false")
	}
	if byID["a"].PrevSelected || byID["a"].NextSelected {
		t.Error("unselected group a must report no adjacency flags")
	}
	if byID["d"].PrevSelected || byID["d"].NextSelected {
		t.Error("unselected group d must report no adjacency flags")
	}
}

func TestGroupFirstLastFlagsAndNoCitations(t *testing.T) {
	citations := []Citation{
		{ID: "a", DocumentID: 1, Pages: []int{1}},
		{ID: "b", DocumentID: 1, Pages: []int{9}},
	}

	result := Group(citations, Selection{Page: 1, DocumentID: 1}, catalog)
	if !result[0].FirstPageGroupSelected {
		t.Error("first page group is selected; flag should be set")
	}
	if result[0].LastPageGroupSelected {
		t.Error("last page group is not selected; flag should be clear")
	}
	if result[0].NoCitations {
		t.Error("document has citations; noCitations should be false")
	}
	if result[1].NoCitations {
		// Document 2 is not displayed, so noCitations stays false even though empty.
		t.Error("noCitations applies only to the displayed document")
	}

	result = Group(nil, Selection{DocumentID: 2}, catalog)
	if !result[1].NoCitations {
		t.Error("displayed document without citations should report noCitations")
	}
}

func TestGroupDeterministic(t *testing.T) {
	citations := []Citation{
		{ID: "a", DocumentID: 1, Pages: []int{5}},
		{ID: "b", DocumentID: 1, Pages: []int{1, 2}},
		{ID: "c", DocumentID: 2, Pages: nil},
	}
	sel := Selection{Page: 2, DocumentID: 1}

	first := Group(citations, sel, catalog)
	for i := 0; i < 10; i++ {
		again := Group(citations, sel, catalog)
		for d := range first {
			if len(again[d].PageGroups) != len(first[d].PageGroups) {
				t.Fatal("nondeterministic group count")
			}
			for g := range first[d].PageGroups {
				if again[d].PageGroups[g] != first[d].PageGroups[g] {
					t.Fatalf("nondeterministic output at doc %d group %d", d, g)
				}
			}
		}
	}
}
