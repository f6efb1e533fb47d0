// Package grouping computes the sidebar view model: per document, the sorted
// page groups of a question's citations with selection and adjacency flags.
// Group is a pure function of its inputs; it holds no state and performs no I/O,
// so callers can recompute it on every change to the citation collection, the
// selection, the active document, or the current page.
package grouping

import "sort"

const (
	// MaxPageNumber exceeds any real page number. The composite sort key
	// firstPage*MaxPageNumber+lastPage therefore orders primarily by first
	// page and secondarily by last page.
	MaxPageNumber = 1000
	// UnlocatedPage is the sentinel page range for citations with no bounds;
	// it sorts after every concrete page range.
	UnlocatedPage = MaxPageNumber
)

// Citation is one input row. Pages holds the page numbers drawn from the
// citation's bounds; an empty slice means the citation could not be located.
type Citation struct {
	ID         string
	DocumentID int64
	Pages      []int
}

// Document is one entry of the document catalog, in catalog order.
type Document struct {
	ID     int64  `json:"documentId"`
	Name   string `json:"name"`
	PDFURL string `json:"pdfUrl"`
}

// Selection is the UI selection state the view model is computed against.
// CitationID wins over Page: when a citation is explicitly selected, page-based
// selection is ignored entirely.
type Selection struct {
	CitationID string
	Page       int
	DocumentID int64
}

// PageGroup is one citation rendered as a page-range entry. CitationIndex is
// the citation's position in the input slice and is only meaningful for this
// exact input; CitationID is the stable cross-component reference.
type PageGroup struct {
	FirstPage     int    `json:"firstPage"`
	LastPage      int    `json:"lastPage"`
	CitationIndex int    `json:"citationIndex"`
	CitationID    string `json:"citationId"`
	Selected      bool   `json:"pageGroupSelected"`
	PrevSelected  bool   `json:"prevPageGroupSelected"`
	NextSelected  bool   `json:"nextPageGroupSelected"`
}

// DocumentGroup is the computed view model for one catalog document.
type DocumentGroup struct {
	Document               Document    `json:"document"`
	DocSelected            bool        `json:"docSelected"`
	PageGroups             []PageGroup `json:"pageGroups"`
	FirstPageGroupSelected bool        `json:"firstPageGroupSelected"`
	LastPageGroupSelected  bool        `json:"lastPageGroupSelected"`
	NoCitations            bool        `json:"noCitations"`
}

// Group computes the per-document view model. Documents appear in catalog
// order; citations referencing a document absent from the catalog are simply
// not rendered. Two citations covering identical page ranges stay separate
// groups; ties keep the original citation order.
func Group(citations []Citation, sel Selection, docs []Document) []DocumentGroup {
	result := make([]DocumentGroup, 0, len(docs))
	for _, doc := range docs {
		docSelected := doc.ID == sel.DocumentID

		var groups []PageGroup
		for i, cit := range citations {
			if cit.DocumentID != doc.ID {
				continue
			}
			first, last := pageRange(cit.Pages)
			groups = append(groups, PageGroup{
				FirstPage:     first,
				LastPage:      last,
				CitationIndex: i,
				CitationID:    cit.ID,
			})
		}

		sort.SliceStable(groups, func(i, j int) bool {
			return groups[i].FirstPage*MaxPageNumber+groups[i].LastPage <
				groups[j].FirstPage*MaxPageNumber+groups[j].LastPage
		})

		for i := range groups {
			groups[i].Selected = groupSelected(groups[i], sel, docSelected)
		}
		// Adjacency flags drive the visual connector between two adjacent
		// selected groups, so they are only set on groups that are
		// themselves selected. Out-of-range neighbors count as unselected.
		for i := range groups {
			if !groups[i].Selected {
				continue
			}
			if i > 0 && groups[i-1].Selected {
				groups[i].PrevSelected = true
			}
			if i < len(groups)-1 && groups[i+1].Selected {
				groups[i].NextSelected = true
			}
		}

		result = append(result, DocumentGroup{
			Document:               doc,
			DocSelected:            docSelected,
			PageGroups:             groups,
			FirstPageGroupSelected: docSelected && len(groups) > 0 && groups[0].Selected,
			LastPageGroupSelected:  docSelected && len(groups) > 0 && groups[len(groups)-1].Selected,
			NoCitations:            docSelected && len(groups) == 0,
		})
	}
	return result
}

// pageRange reduces a citation's pages to its first and last page. A citation
// spanning several pages becomes a single range, not one group per page.
func pageRange(pages []int) (int, int) {
	if len(pages) == 0 {
		return UnlocatedPage, UnlocatedPage
	}
	first, last := pages[0], pages[0]
	for _, p := range pages[1:] {
		if p < first {
			first = p
		}
		if p > last {
			last = p
		}
	}
	return first, last
}

func groupSelected(g PageGroup, sel Selection, docSelected bool) bool {
	if sel.CitationID != "" {
		// An explicit selection is keyed by citation id and is exclusive
		// across all documents, regardless of the current page.
		return g.CitationID == sel.CitationID
	}
	// Page-based selection applies only within the displayed document.
	// Overlapping ranges can both match; that is accepted behavior.
	return docSelected && sel.Page != 0 && sel.Page >= g.FirstPage && sel.Page <= g.LastPage
}
