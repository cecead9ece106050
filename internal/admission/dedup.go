// Package admission содержит единственное по-настоящему конкурентное
// разделяемое состояние ядра: кэш дедупликации и пер-агентные rate-лимиты.
// Обе структуры шардированы по хэшу ключа — сообщения разных агентов
// никогда не блокируют друг друга, глобального лока нет.
package admission

import (
	"container/list"
	"hash/fnv"
	"sync"
	"time"
)

const dedupShards = 16

// ReplayCache — ограниченный кэш идентификаторов сообщений с TTL.
// Повтор message_id внутри окна — реплей; гарантия at-most-once на id.
// Память ограничена двумя механизмами: истечение по времени и потолок
// записей с LRU-вытеснением.
type ReplayCache struct {
	shards     [dedupShards]*dedupShard
	defaultTTL time.Duration

	now func() time.Time
}

type dedupShard struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front — самые свежие, с хвоста вытесняем
}

type dedupEntry struct {
	key       string
	expiresAt time.Time
}

func NewReplayCache(defaultTTL time.Duration, capacity int) *ReplayCache {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if capacity <= 0 {
		capacity = 100000
	}
	c := &ReplayCache{
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	perShard := capacity / dedupShards
	if perShard < 1 {
		perShard = 1
	}
	for i := range c.shards {
		c.shards[i] = &dedupShard{
			capacity: perShard,
			entries:  make(map[string]*list.Element),
			order:    list.New(),
		}
	}
	return c
}

// Seen атомарно регистрирует message_id и отвечает, был ли он уже в окне.
// ttl сообщения (из metadata.ttl_seconds) перекрывает дефолтное окно.
// Конкурентные вызовы с одним id сериализуются на шарде: двойного допуска нет.
func (c *ReplayCache) Seen(messageID string, ttl time.Duration) bool {
	if messageID == "" {
		return false
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()
	sh := c.shards[shardIndex(messageID, dedupShards)]

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if el, ok := sh.entries[messageID]; ok {
		entry := el.Value.(*dedupEntry)
		if entry.expiresAt.After(now) {
			return true // реплей внутри окна
		}
		// Окно истекло — считаем новым сообщением
		entry.expiresAt = now.Add(ttl)
		sh.order.MoveToFront(el)
		return false
	}

	el := sh.order.PushFront(&dedupEntry{key: messageID, expiresAt: now.Add(ttl)})
	sh.entries[messageID] = el

	// Потолок памяти: сперва выкидываем истекшие с хвоста, потом — LRU
	for len(sh.entries) > sh.capacity {
		back := sh.order.Back()
		if back == nil {
			break
		}
		sh.order.Remove(back)
		delete(sh.entries, back.Value.(*dedupEntry).key)
	}
	return false
}

// Len — текущее число записей (для метрик и тестов).
func (c *ReplayCache) Len() int {
	total := 0
	for _, sh := range c.shards {
		sh.mu.Lock()
		total += len(sh.entries)
		sh.mu.Unlock()
	}
	return total
}

func shardIndex(key string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
