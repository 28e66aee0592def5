package dialogue

import (
	"strings"
	"sync"

	"github.com/CliniqAI/voicecore/internal/models"
	"github.com/CliniqAI/voicecore/pkg/logger"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AnswerBook keyword-matches caller questions against the clinic-info table.
// Entries load once and refresh on demand, so staff edits show up without a
// restart; matched utterances are cached because callers repeat the same
// handful of questions all day.
type AnswerBook struct {
	db *gorm.DB

	mutex   sync.RWMutex
	entries []answerEntry

	cache *lru.Cache[string, string] // normalized utterance -> topic
}

type answerEntry struct {
	topic    string
	keywords []string
	answer   string
}

func NewAnswerBook(db *gorm.DB) (*AnswerBook, error) {
	cache, err := lru.New[string, string](256)
	if err != nil {
		return nil, err
	}
	book := &AnswerBook{db: db, cache: cache}
	if err := book.Refresh(); err != nil {
		return nil, err
	}
	return book, nil
}

// Refresh reloads enabled entries from the database and drops the cache.
func (b *AnswerBook) Refresh() error {
	rows, err := models.GetEnabledClinicInfo(b.db)
	if err != nil {
		return err
	}
	entries := make([]answerEntry, 0, len(rows))
	for _, row := range rows {
		entry := answerEntry{topic: row.Topic, answer: row.Answer}
		for _, kw := range strings.Split(row.Keywords, ",") {
			kw = strings.TrimSpace(strings.ToLower(kw))
			if kw != "" {
				entry.keywords = append(entry.keywords, kw)
			}
		}
		if len(entry.keywords) == 0 {
			entry.keywords = []string{strings.ToLower(row.Topic)}
		}
		entries = append(entries, entry)
	}

	b.mutex.Lock()
	b.entries = entries
	b.mutex.Unlock()
	b.cache.Purge()

	logger.Info("answer book loaded", zap.Int("topics", len(entries)))
	return nil
}

// Match returns the topic and answer for an utterance, ok=false when no
// entry matches.
func (b *AnswerBook) Match(text string) (topic, answer string, ok bool) {
	lower := strings.ToLower(text)

	if cachedTopic, hit := b.cache.Get(lower); hit {
		if a, found := b.answerFor(cachedTopic); found {
			return cachedTopic, a, true
		}
	}

	b.mutex.RLock()
	defer b.mutex.RUnlock()
	for _, entry := range b.entries {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				b.cache.Add(lower, entry.topic)
				return entry.topic, entry.answer, true
			}
		}
	}
	return "", "", false
}

// Answer returns the answer text for a known topic.
func (b *AnswerBook) Answer(topic string) string {
	a, _ := b.answerFor(topic)
	return a
}

func (b *AnswerBook) answerFor(topic string) (string, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	for _, entry := range b.entries {
		if entry.topic == topic {
			return entry.answer, true
		}
	}
	return "", false
}
