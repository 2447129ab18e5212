package otpstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const recordVersionV1 = 1

var (
	ErrNotFound         = errors.New("otp not found or expired")
	ErrMismatch         = errors.New("otp mismatch")
	ErrAttemptsExceeded = errors.New("otp attempts exceeded")
	ErrRedisUnavailable = errors.New("otp redis unavailable")
)

// consumeLua
// KEYS[1] = record key
// ARGV[1] = provided hash (32 bytes)
// ARGV[2] = max attempts
// ARGV[3] = current unix timestamp
var consumeLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

local providedHash = ARGV[1]
local maxAttempts = tonumber(ARGV[2])
local nowUnix = tonumber(ARGV[3])

if string.byte(data, 1) ~= 1 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local attempts = string.byte(data, 2) * 256 + string.byte(data, 3)

local e0,e1,e2,e3,e4,e5,e6,e7 = string.byte(data, 4, 11)
local expiresAt = e0
for _, b in ipairs({e1,e2,e3,e4,e5,e6,e7}) do
  expiresAt = expiresAt * 256 + b
end

if nowUnix > expiresAt then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local emailLen = string.byte(data, 12) * 256 + string.byte(data, 13)
local hashOffset = 14 + emailLen
local storedHash = string.sub(data, hashOffset, hashOffset + 31)

if storedHash ~= providedHash then
  attempts = attempts + 1
  if attempts >= maxAttempts then
    redis.call('DEL', KEYS[1])
    return {err='attempts_exceeded'}
  end
  local newData = string.sub(data, 1, 1) .. string.char(math.floor(attempts / 256), attempts % 256) .. string.sub(data, 4)
  local ttlMs = redis.call('PTTL', KEYS[1])
  if ttlMs <= 0 then
    redis.call('DEL', KEYS[1])
    return {err='not_found'}
  end
  redis.call('SET', KEYS[1], newData, 'PX', ttlMs)
  return {err='mismatch'}
end

redis.call('DEL', KEYS[1])
return data
`)

// Record is a pending code.
type Record struct {
	Email     string
	CodeHash  [32]byte
	ExpiresAt int64
	Attempts  uint16
}

// Store is safe for concurrent use.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func New(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "tripauth:otp"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

// NormalizeEmail is the identity used for keys and hashes.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashCode binds code to email so a hash cannot be replayed for another address.
func HashCode(email, code string) [32]byte {
	return sha256.Sum256([]byte(NormalizeEmail(email) + ":" + code))
}

func (s *Store) key(email string) string {
	return s.prefix + ":" + NormalizeEmail(email)
}

// Issue stores code for email, replacing any pending code.
func (s *Store) Issue(ctx context.Context, email, code string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("otp ttl must be > 0")
	}
	record := &Record{
		Email:     NormalizeEmail(email),
		CodeHash:  HashCode(email, code),
		ExpiresAt: s.now().Add(ttl).Unix(),
	}
	encoded, err := encodeRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(email), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Consume checks code for email. A match removes the pending code.
func (s *Store) Consume(ctx context.Context, email, code string, maxAttempts int) (*Record, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	provided := HashCode(email, code)

	result, err := consumeLua.Run(ctx, s.redis,
		[]string{s.key(email)},
		string(provided[:]),
		maxAttempts,
		s.now().Unix(),
	).Result()
	if err != nil {
		switch err.Error() {
		case "not_found":
			return nil, ErrNotFound
		case "mismatch":
			return nil, ErrMismatch
		case "attempts_exceeded":
			return nil, ErrAttemptsExceeded
		default:
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrRedisUnavailable)
	}
	record, err := decodeRecord([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Lua string comparison is not constant-time.
	if subtle.ConstantTimeCompare(record.CodeHash[:], provided[:]) != 1 {
		return nil, ErrMismatch
	}
	return record, nil
}

// Pending reports whether a code is outstanding for email.
func (s *Store) Pending(ctx context.Context, email string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(email)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

func encodeRecord(record *Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if len(record.Email) > 65535 {
		return nil, errors.New("otp record email too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Email))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Email)
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordVersionV1 {
		return nil, errors.New("invalid otp record version")
	}

	record := &Record{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var emailLen uint16
	if err := binary.Read(reader, binary.BigEndian, &emailLen); err != nil {
		return nil, err
	}
	email := make([]byte, emailLen)
	if _, err := io.ReadFull(reader, email); err != nil {
		return nil, err
	}
	record.Email = string(email)

	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}
	return record, nil
}
