package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"strings"
)

// Algorithm определяет хеш-функцию HMAC, которой подписывает провайдер
type Algorithm string

const (
	// SHA256 используется MoMo
	SHA256 Algorithm = "HMAC-SHA256"
	// SHA512 используется VNPay
	SHA512 Algorithm = "HMAC-SHA512"
)

func (a Algorithm) newHash() (func() hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New, nil
	case SHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("unsupported signature algorithm: %s", a)
	}
}

// Codec подписывает и проверяет канонические строки одним секретом и одним алгоритмом.
// Codec не хранит изменяемого состояния и безопасен для конкурентного использования.
type Codec struct {
	alg    Algorithm
	secret []byte
	hashFn func() hash.Hash
}

// New создаёт Codec для указанного алгоритма и секрета провайдера
func New(alg Algorithm, secret string) (*Codec, error) {
	hashFn, err := alg.newHash()
	if err != nil {
		return nil, err
	}
	return &Codec{
		alg:    alg,
		secret: []byte(secret),
		hashFn: hashFn,
	}, nil
}

// Algorithm возвращает алгоритм кодека
func (c *Codec) Algorithm() Algorithm {
	return c.alg
}

// Sign возвращает HMAC канонической строки в нижнем регистре hex
func (c *Codec) Sign(canonical string) string {
	mac := hmac.New(c.hashFn, c.secret)
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify сравнивает присланную подпись с ожидаемой за постоянное время.
// Регистр hex не важен: часть провайдеров присылает подпись в верхнем регистре.
func (c *Codec) Verify(canonical, provided string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(provided))
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(c.hashFn, c.secret)
	mac.Write([]byte(canonical))
	return hmac.Equal(mac.Sum(nil), got)
}

// Sign вычисляет подпись без создания Codec
func Sign(alg Algorithm, secret, canonical string) (string, error) {
	c, err := New(alg, secret)
	if err != nil {
		return "", err
	}
	return c.Sign(canonical), nil
}

// Verify проверяет подпись без создания Codec; неизвестный алгоритм даёт false
func Verify(alg Algorithm, secret, canonical, provided string) bool {
	c, err := New(alg, secret)
	if err != nil {
		return false
	}
	return c.Verify(canonical, provided)
}

type canonicalOptions struct {
	escape    func(string) string
	skipEmpty bool
}

// Option настраивает сборку канонической строки
type Option func(*canonicalOptions)

// WithEscape экранирует ключи и значения перед склейкой (например url.QueryEscape)
func WithEscape(escape func(string) string) Option {
	return func(o *canonicalOptions) {
		o.escape = escape
	}
}

// SkipEmpty пропускает поля с пустым значением
func SkipEmpty() Option {
	return func(o *canonicalOptions) {
		o.skipEmpty = true
	}
}

// Canonical собирает строку key=value&... по списку keys в алфавитном порядке.
// В строку попадают только ключи из keys: лишние поля fields игнорируются,
// отсутствующие подставляются пустым значением (если не задан SkipEmpty).
func Canonical(fields map[string]string, keys []string, opts ...Option) string {
	o := canonicalOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	var b strings.Builder
	for _, k := range sorted {
		v := fields[k]
		if o.skipEmpty && v == "" {
			continue
		}
		if o.escape != nil {
			k, v = o.escape(k), o.escape(v)
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String()
}

// KeysWithPrefix возвращает ключи fields с префиксом prefix, кроме exclude.
// Нужен провайдерам, которые подписывают все свои поля, а не фиксированный список.
func KeysWithPrefix(fields map[string]string, prefix string, exclude ...string) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		skip := false
		for _, e := range exclude {
			if k == e {
				skip = true
				break
			}
		}
		if !skip {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
