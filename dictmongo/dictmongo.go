// Package dictmongo implements teng.Dictionary backed by a MongoDB
// collection, for deployments that manage translations through an
// editable document store instead of a static YAML file.
package dictmongo

import (
	"fmt"

	"github.com/seznam/teng-sub003"
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

// entryDoc is the collection's document shape: one document per
// (language, key) pair. A compound unique index on {lang, key} is
// expected to already exist on the collection; this package doesn't
// create it, since index management belongs to deployment tooling, not
// the hot lookup path.
type entryDoc struct {
	Lang string `bson:"lang"`
	Key  string `bson:"key"`
	Text string `bson:"text"`
}

// Dictionary resolves #{key} lookups against a MongoDB collection. Build
// one with Open and pass it to teng.WithDictionary; it queries per
// lookup rather than caching the whole collection in memory, since
// dictionaries backed by Mongo are usually edited live and teng favors
// reflecting those edits immediately over staleness-free caching.
type Dictionary struct {
	session    *mgo.Session
	collection string
	db         string
}

// Open dials uri (a standard mongodb:// connection string) and returns a
// Dictionary querying db.collection for lookups.
func Open(uri, db, collection string) (*Dictionary, error) {
	session, err := mgo.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("dictmongo: dialing %q: %w", uri, err)
	}
	session.SetMode(mgo.Monotonic, true)
	return &Dictionary{session: session, collection: collection, db: db}, nil
}

// Close releases the underlying MongoDB session.
func (d *Dictionary) Close() {
	d.session.Close()
}

// Lookup implements teng.Dictionary.
func (d *Dictionary) Lookup(lang, key string) (string, bool) {
	s := d.session.Copy()
	defer s.Close()

	var doc entryDoc
	err := s.DB(d.db).C(d.collection).Find(bson.M{"lang": lang, "key": key}).One(&doc)
	if err != nil {
		return "", false
	}
	return doc.Text, true
}

var _ teng.Dictionary = (*Dictionary)(nil)
