// Package dedup collapses paper records returned by several providers into
// one record per paper.
//
// Two records describe the same paper when they share a DOI (compared
// case-insensitively) or, failing that, a normalized title. Duplicates are
// merged field by field so the survivor carries the richest metadata.
package dedup

import (
	"github.com/helixir/paper-search-service/internal/domain"
)

// Deduplicate returns one paper per identity, in first-seen order. Inputs
// are not modified; merged records are copies.
//
// Each record is matched against the survivors by DOI first, then by
// normalized title. After a merge the survivor is indexed under every key
// it now carries, so later records can match on a key contributed by
// either side. When a merge hands a survivor a key already owned by another
// survivor, the later of the two is folded into the earlier one.
//
// Deduplicate is idempotent: Deduplicate(Deduplicate(x)) equals Deduplicate(x).
func Deduplicate(papers []*domain.UnifiedPaper) []*domain.UnifiedPaper {
	d := &deduper{
		survivors: make([]*domain.UnifiedPaper, 0, len(papers)),
		byDOI:     make(map[string]int, len(papers)),
		byTitle:   make(map[string]int, len(papers)),
	}

	for _, p := range papers {
		if p == nil {
			continue
		}
		if idx, ok := d.lookup(p); ok {
			d.survivors[idx] = Merge(d.survivors[idx], p)
			d.settle(idx)
			continue
		}
		d.survivors = append(d.survivors, p.Clone())
		d.settle(len(d.survivors) - 1)
	}

	result := make([]*domain.UnifiedPaper, 0, len(d.survivors))
	for _, p := range d.survivors {
		if p != nil {
			result = append(result, p)
		}
	}
	return result
}

// deduper tracks survivors and the identity keys they own. A folded
// survivor leaves a nil slot so indices stay stable.
type deduper struct {
	survivors []*domain.UnifiedPaper
	byDOI     map[string]int
	byTitle   map[string]int
}

func (d *deduper) lookup(p *domain.UnifiedPaper) (int, bool) {
	if doi := domain.NormalizeDOI(p.DOI); doi != "" {
		if idx, ok := d.byDOI[doi]; ok {
			return idx, true
		}
	}
	if title := domain.NormalizeTitle(p.Title); title != "" {
		if idx, ok := d.byTitle[title]; ok {
			return idx, true
		}
	}
	return -1, false
}

// settle indexes survivor idx under its keys, folding it together with any
// other survivor that already owns one of them.
func (d *deduper) settle(idx int) {
	for {
		other, ok := d.conflict(idx)
		if !ok {
			break
		}
		lo, hi := min(idx, other), max(idx, other)
		d.survivors[lo] = Merge(d.survivors[lo], d.survivors[hi])
		d.survivors[hi] = nil
		d.reassign(hi, lo)
		idx = lo
	}

	p := d.survivors[idx]
	if doi := domain.NormalizeDOI(p.DOI); doi != "" {
		d.byDOI[doi] = idx
	}
	if title := domain.NormalizeTitle(p.Title); title != "" {
		d.byTitle[title] = idx
	}
}

// conflict returns a survivor other than idx that owns one of idx's keys.
func (d *deduper) conflict(idx int) (int, bool) {
	p := d.survivors[idx]
	if doi := domain.NormalizeDOI(p.DOI); doi != "" {
		if owner, ok := d.byDOI[doi]; ok && owner != idx {
			return owner, true
		}
	}
	if title := domain.NormalizeTitle(p.Title); title != "" {
		if owner, ok := d.byTitle[title]; ok && owner != idx {
			return owner, true
		}
	}
	return -1, false
}

func (d *deduper) reassign(from, to int) {
	for k, v := range d.byDOI {
		if v == from {
			d.byDOI[k] = to
		}
	}
	for k, v := range d.byTitle {
		if v == from {
			d.byTitle[k] = to
		}
	}
}

// Merge combines two records of the same paper into a new record.
//
// The existing record keeps its ID and source unless it did not come from
// the primary provider and the incoming one did. Scalar fields keep the
// existing value unless it is empty. Citation counts take the maximum, open
// access is true if either side says so, and the longer abstract wins with
// ties going to the existing record.
func Merge(existing, incoming *domain.UnifiedPaper) *domain.UnifiedPaper {
	merged := existing.Clone()

	if existing.Source != domain.PrimarySource && incoming.Source == domain.PrimarySource {
		merged.ID = incoming.ID
		merged.Source = incoming.Source
	}

	if merged.Title == "" {
		merged.Title = incoming.Title
	}
	if len(merged.Authors) == 0 && len(incoming.Authors) > 0 {
		merged.Authors = append([]string(nil), incoming.Authors...)
	}
	if merged.Journal == "" {
		merged.Journal = incoming.Journal
	}
	if merged.Year == nil && incoming.Year != nil {
		y := *incoming.Year
		merged.Year = &y
	}
	if merged.DOI == "" {
		merged.DOI = incoming.DOI
	}
	if merged.PMID == "" {
		merged.PMID = incoming.PMID
	}
	if merged.PDFURL == "" {
		merged.PDFURL = incoming.PDFURL
	}

	merged.CitationCount = max(existing.CitationCount, incoming.CitationCount)
	merged.IsOpenAccess = existing.IsOpenAccess || incoming.IsOpenAccess

	if len(incoming.Abstract) > len(existing.Abstract) {
		merged.Abstract = incoming.Abstract
	}

	return merged
}
