package scheme

import (
	"time"

	"github.com/hyperjump/hive/internal/termindex"
)

// ID is unique per constructed descriptor; a reload yields a new ID.
func (d *Descriptor) ID() string { return d.id }

// FirstTime reports whether the descriptor was built without reading the index store.
func (d *Descriptor) FirstTime() bool { return d.firstTime }

// LoadedAt is when construction completed.
func (d *Descriptor) LoadedAt() time.Time { return d.loadedAt }

// Config returns a copy of the scheme configuration.
func (d *Descriptor) Config() Config { return d.cfg }

// Name is the short vocabulary name from the name property.
func (d *Descriptor) Name() string { return d.cfg.Name }

// LongName is the human-readable vocabulary title.
func (d *Descriptor) LongName() string { return d.cfg.LongName }

// SchemaURI is the namespace URI of the vocabulary concepts.
func (d *Descriptor) SchemaURI() string { return d.cfg.SchemaURI }

// IndexDirectory holds the index store statistics.
func (d *Descriptor) IndexDirectory() string { return d.cfg.IndexDirectory }

// StoreDirectory is the RDF store location.
func (d *Descriptor) StoreDirectory() string { return d.cfg.StoreDirectory }

// AlphaFilePath is the term file backing AlphaIndex.
func (d *Descriptor) AlphaFilePath() string { return d.cfg.AlphaFilePath }

// TopConceptIndexPath is the term file backing TopConceptIndex.
func (d *Descriptor) TopConceptIndexPath() string { return d.cfg.TopConceptIndexPath }

// StopwordsPath is the stopword list used by keyword extraction.
func (d *Descriptor) StopwordsPath() string { return d.cfg.StopwordsPath }

// RDFPath is the source RDF file of the vocabulary.
func (d *Descriptor) RDFPath() string { return d.cfg.RDFPath }

// KEATrainingSetDir is the KEA training document directory.
func (d *Descriptor) KEATrainingSetDir() string { return d.cfg.KEATrainingSetDir }

// KEATestSetDir is the KEA test document directory.
func (d *Descriptor) KEATestSetDir() string { return d.cfg.KEATestSetDir }

// KEAModelPath is the trained KEA model file.
func (d *Descriptor) KEAModelPath() string { return d.cfg.KEAModelPath }

// LingPipeModel is the LingPipe classifier model path.
func (d *Descriptor) LingPipeModel() string { return d.cfg.LingPipeModel }

// Statistics returns the index store statistics; zero in first-time mode.
func (d *Descriptor) Statistics() Statistics { return d.stats }

// LastDate is when the index store was last built.
func (d *Descriptor) LastDate() string { return d.stats.LastDate }

// NumberOfConcepts is the concept count of the index store.
func (d *Descriptor) NumberOfConcepts() int { return d.stats.Concepts }

// NumberOfRelations is the total relation count.
func (d *Descriptor) NumberOfRelations() int { return d.stats.Relations }

// NumberOfBroader is the count of broader relations.
func (d *Descriptor) NumberOfBroader() int { return d.stats.Broader }

// NumberOfNarrower is the count of narrower relations.
func (d *Descriptor) NumberOfNarrower() int { return d.stats.Narrower }

// NumberOfRelated is the count of related relations.
func (d *Descriptor) NumberOfRelated() int { return d.stats.Related }

// AlphaIndex returns every term of the vocabulary in ascending order.
func (d *Descriptor) AlphaIndex() *termindex.Index { return d.alpha }

// TopConceptIndex returns the terms of the top level of the concept hierarchy.
func (d *Descriptor) TopConceptIndex() *termindex.Index { return d.topConcept }

// AlphaIndexStartingWith returns the alpha entries whose term starts with letter.
func (d *Descriptor) AlphaIndexStartingWith(letter string) *termindex.Index {
	return d.alpha.SubIndex(letter)
}

// TopConceptIndexStartingWith returns the top-concept entries whose term starts with letter.
func (d *Descriptor) TopConceptIndexStartingWith(letter string) *termindex.Index {
	return d.topConcept.SubIndex(letter)
}

// Session returns the bound session handle, if any.
func (d *Descriptor) Session() (Session, bool) {
	ref := d.session.Load()
	if ref == nil {
		return nil, false
	}
	return ref.s, true
}

// SetSession binds s, replacing any previous handle. Intended to be called once per active
// session by the owning service; passing nil clears the binding.
func (d *Descriptor) SetSession(s Session) {
	if s == nil {
		d.session.Store(nil)
		return
	}
	d.session.Store(&sessionRef{s: s})
}

// Info is a serializable snapshot of a descriptor.
type Info struct {
	Name        string     `json:"name"`
	ID          string     `json:"id"`
	FirstTime   bool       `json:"first_time"`
	LoadedAt    time.Time  `json:"loaded_at"`
	Config      Config     `json:"config"`
	Statistics  Statistics `json:"statistics"`
	AlphaTerms  int        `json:"alpha_terms"`
	TopConcepts int        `json:"top_concepts"`
}

// Info returns a snapshot of d.
func (d *Descriptor) Info() Info {
	return Info{
		Name:        d.cfg.Name,
		ID:          d.id,
		FirstTime:   d.firstTime,
		LoadedAt:    d.loadedAt,
		Config:      d.cfg,
		Statistics:  d.stats,
		AlphaTerms:  d.alpha.Len(),
		TopConcepts: d.topConcept.Len(),
	}
}
