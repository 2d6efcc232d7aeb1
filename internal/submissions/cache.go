package submissions

import (
	"encoding/json"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const (
	megabyte          = 1024 * 1024
	resultCacheExpire = 10 * 60 // seconds
)

// ResultCache holds views of finished submissions. Only terminal views are
// cached, a retry evicts the entry.
type ResultCache struct {
	cache *freecache.Cache
}

func NewResultCache(sizeMB int) *ResultCache {
	return &ResultCache{
		cache: freecache.NewCache(sizeMB * megabyte),
	}
}

func (c *ResultCache) Get(submissionID string) (*View, bool) {
	viewBytes, err := c.cache.Get([]byte(submissionID))
	if err != nil {
		return nil, false
	}
	view := &View{}
	if err := json.Unmarshal(viewBytes, view); err != nil {
		log.Errorf("unmarshal cached view [%s]: %s", submissionID, err)
		return nil, false
	}
	return view, true
}

func (c *ResultCache) Set(view *View) {
	if view == nil || view.Submission == nil || !view.Submission.Status.IsTerminal() {
		return
	}
	viewBytes, err := json.Marshal(view)
	if err != nil {
		log.Errorf("marshal view [%s]: %s", view.Submission.ID, err)
		return
	}
	if err := c.cache.Set([]byte(view.Submission.ID), viewBytes, resultCacheExpire); err != nil {
		log.Debugf("cache view [%s]: %s", view.Submission.ID, err)
	}
}

func (c *ResultCache) Evict(submissionID string) {
	c.cache.Del([]byte(submissionID))
}

func (c *ResultCache) EntryCount() int64 {
	return c.cache.EntryCount()
}
