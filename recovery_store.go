package authgate

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	recoveryKeyPrefix       = "agr"
	recoveryRecordVersionV1 = 1
	recoveryFlagVerified    = 1 << 0
)

var (
	errChallengeNotFound        = errors.New("recovery challenge not found")
	errChallengeExpired         = errors.New("recovery challenge expired")
	errChallengeAlreadyVerified = errors.New("recovery challenge already verified")
	errChallengeUnverified      = errors.New("recovery challenge not verified")
	errRecoveryRedisUnavailable = errors.New("recovery redis unavailable")
)

// recoveryChallenge is the stored state of one account's recovery flow.
// The plaintext code is never persisted; only its SHA-256 hash.
type recoveryChallenge struct {
	AccountID int64
	CodeHash  [32]byte
	ExpiresAt int64
	Verified  bool
}

// recoveryChallengeStore keeps at most one challenge per account, keyed by
// account ID. The single-key layout makes Upsert a plain SET: concurrent
// requests race on the same key and the last write wins, so exactly one
// challenge survives.
type recoveryChallengeStore struct {
	redis  *redis.Client
	prefix string
	now    func() time.Time
}

func newRecoveryChallengeStore(redisClient *redis.Client) *recoveryChallengeStore {
	return &recoveryChallengeStore{
		redis:  redisClient,
		prefix: recoveryKeyPrefix,
		now:    time.Now,
	}
}

func (s *recoveryChallengeStore) key(accountID int64) string {
	return s.prefix + ":" + strconv.FormatInt(accountID, 10)
}

// Upsert replaces whatever challenge the account currently holds with a
// fresh unverified one.
func (s *recoveryChallengeStore) Upsert(
	ctx context.Context,
	accountID int64,
	codeHash [32]byte,
	ttl time.Duration,
) error {
	record := &recoveryChallenge{
		AccountID: accountID,
		CodeHash:  codeHash,
		ExpiresAt: s.now().Add(ttl).Unix(),
	}

	encoded, err := encodeRecoveryChallenge(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(accountID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRecoveryRedisUnavailable, err)
	}

	return nil
}

// Verify transitions the account's challenge to verified when the provided
// code hash matches. Expired challenges are deleted on first touch; a
// challenge that was already verified is deleted and reported, so a code
// never verifies twice. The transition runs under WATCH so a concurrent
// Upsert or Delete restarts the attempt against the fresh record.
func (s *recoveryChallengeStore) Verify(
	ctx context.Context,
	accountID int64,
	codeHash [32]byte,
) error {
	const maxRetries = 4
	key := s.key(accountID)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeRecoveryChallenge(data)
			if err != nil {
				return err
			}

			if s.now().Unix() > record.ExpiresAt {
				if err := txDelete(ctx, tx, key); err != nil {
					return err
				}
				return errChallengeExpired
			}

			if subtle.ConstantTimeCompare(record.CodeHash[:], codeHash[:]) != 1 {
				return errChallengeNotFound
			}

			if record.Verified {
				if err := txDelete(ctx, tx, key); err != nil {
					return err
				}
				return errChallengeAlreadyVerified
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				if err := txDelete(ctx, tx, key); err != nil {
					return err
				}
				return errChallengeExpired
			}

			record.Verified = true
			updated, err := encodeRecoveryChallenge(record)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return errChallengeNotFound
			case errors.Is(err, errChallengeNotFound),
				errors.Is(err, errChallengeExpired),
				errors.Is(err, errChallengeAlreadyVerified):
				return err
			default:
				return fmt.Errorf("%w: %v", errRecoveryRedisUnavailable, err)
			}
		}

		return nil
	}

	return errChallengeNotFound
}

// MatchVerified checks that the account holds a live, verified challenge
// matching the provided code hash. It does not consume the challenge; the
// caller deletes it after the password write lands.
func (s *recoveryChallengeStore) MatchVerified(
	ctx context.Context,
	accountID int64,
	codeHash [32]byte,
) error {
	data, err := s.redis.Get(ctx, s.key(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errChallengeNotFound
		}
		return fmt.Errorf("%w: %v", errRecoveryRedisUnavailable, err)
	}

	record, err := decodeRecoveryChallenge(data)
	if err != nil {
		return err
	}

	if s.now().Unix() > record.ExpiresAt {
		if err := s.redis.Del(ctx, s.key(accountID)).Err(); err != nil {
			return fmt.Errorf("%w: %v", errRecoveryRedisUnavailable, err)
		}
		return errChallengeExpired
	}

	if subtle.ConstantTimeCompare(record.CodeHash[:], codeHash[:]) != 1 {
		return errChallengeNotFound
	}

	if !record.Verified {
		return errChallengeUnverified
	}

	return nil
}

// Delete removes the account's challenge. Deleting an absent challenge is
// not an error.
func (s *recoveryChallengeStore) Delete(ctx context.Context, accountID int64) error {
	if err := s.redis.Del(ctx, s.key(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRecoveryRedisUnavailable, err)
	}
	return nil
}

func txDelete(ctx context.Context, tx *redis.Tx, key string) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		return nil
	})
	return err
}

func encodeRecoveryChallenge(record *recoveryChallenge) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recoveryRecordVersionV1)

	var flags byte
	if record.Verified {
		flags |= recoveryFlagVerified
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.AccountID); err != nil {
		return nil, err
	}
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeRecoveryChallenge(data []byte) (*recoveryChallenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recoveryRecordVersionV1 {
		return nil, errors.New("invalid recovery record version")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &recoveryChallenge{
		Verified: flags&recoveryFlagVerified != 0,
	}

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.AccountID); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
