package badger

import (
	"encoding/binary"
	"time"

	"github.com/poiesic/ragnote/core"
)

// Key prefixes for different data types
const (
	chunkPrefix        = "chunk:"
	chunkIngestPrefix  = "chunkkey:"
	chunkIDSeq         = "seq:chunk"
	profilePrefix      = "profile:"
	conversationPrefix = "conv:"
	turnPrefix         = "turn:"
	turnSeq            = "seq:turn"
	instancePrefix     = "wf:"
	stepPrefix         = "step:"
	vectorPrefix       = "vec:"
)

// Variable-length string components are terminated by keySep so one id is
// never a prefix of another's keys.
const keySep = 0x00

// appendUint64 writes v in BigEndian order so lexicographic sort matches numeric sort.
func appendUint64(buf []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(buf, v)
}

// makeChunkKey generates a key for a chunk by ID.
// Format: prefix + id
func makeChunkKey(id core.ID) []byte {
	return appendUint64([]byte(chunkPrefix), uint64(id))
}

// makeChunkIngestKey generates the unique index key for a chunk's ingest key.
func makeChunkIngestKey(ingestKey core.ID) []byte {
	return appendUint64([]byte(chunkIngestPrefix), uint64(ingestKey))
}

func makeProfileKey(userID string) []byte {
	return []byte(profilePrefix + userID)
}

func makeConversationKey(conversationID string) []byte {
	return []byte(conversationPrefix + conversationID)
}

// makeTurnPrefix generates the prefix shared by every turn of a conversation.
// Format: prefix + conversationID + sep
func makeTurnPrefix(conversationID string) []byte {
	buf := []byte(turnPrefix + conversationID)
	return append(buf, keySep)
}

// makeTurnKey generates a composite key ordering turns by creation time, then
// by insertion sequence.
// Format: prefix + conversationID + sep + timestamp + seq
func makeTurnKey(conversationID string, createdAt time.Time, seq uint64) []byte {
	buf := makeTurnPrefix(conversationID)
	buf = appendUint64(buf, uint64(createdAt.UnixMicro()))
	return appendUint64(buf, seq)
}

func makeInstanceKey(instanceID string) []byte {
	return []byte(instancePrefix + instanceID)
}

// makeStepKey generates the memo key of a workflow step.
// Format: prefix + instanceID + sep + step + sep + chunkIndex
// The split step uses chunk index -1, stored as its two's complement.
func makeStepKey(instanceID string, step core.StepName, chunkIndex int) []byte {
	buf := []byte(stepPrefix + instanceID)
	buf = append(buf, keySep)
	buf = append(buf, string(step)...)
	buf = append(buf, keySep)
	return appendUint64(buf, uint64(int64(chunkIndex)))
}

// makeStepPrefix generates the prefix shared by every step of an instance.
func makeStepPrefix(instanceID string) []byte {
	buf := []byte(stepPrefix + instanceID)
	return append(buf, keySep)
}

func makeVectorKey(id core.ID) []byte {
	return appendUint64([]byte(vectorPrefix), uint64(id))
}

func vectorIDFromKey(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(vectorPrefix):]))
}
