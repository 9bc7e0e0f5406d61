package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the records kept in the embedded key-value store.
// Field order is the wire order; append new fields at the end only.

var (
	IDMUS               = idMUS{}
	ChunkMUS            = chunkMUS{}
	UserProfileMUS      = userProfileMUS{}
	ConversationMUS     = conversationMUS{}
	TurnMUS             = turnMUS{}
	WorkflowInstanceMUS = workflowInstanceMUS{}
	StepRecordMUS       = stepRecordMUS{}
	VectorMUS           = vectorMUS{}
)

// musWriter appends fields to a pre-sized buffer.
type musWriter struct {
	bs []byte
	n  int
}

func (w *musWriter) uint64(v uint64) { w.n += varint.Uint64.Marshal(v, w.bs[w.n:]) }
func (w *musWriter) int64(v int64)   { w.n += varint.Int64.Marshal(v, w.bs[w.n:]) }
func (w *musWriter) string(v string) { w.n += ord.String.Marshal(v, w.bs[w.n:]) }
func (w *musWriter) time(v time.Time) {
	w.int64(timeToMicros(v))
}

func (w *musWriter) floats(v []float32) {
	w.int64(int64(len(v)))
	for _, f := range v {
		w.n += raw.Float32.Marshal(f, w.bs[w.n:])
	}
}

func (w *musWriter) strings(v []string) {
	w.int64(int64(len(v)))
	for _, s := range v {
		w.string(s)
	}
}

// musReader consumes fields in order and remembers the first error.
type musReader struct {
	bs  []byte
	n   int
	err error
}

func (r *musReader) uint64() (v uint64) {
	if r.err != nil {
		return
	}
	var n int
	v, n, r.err = varint.Uint64.Unmarshal(r.bs[r.n:])
	r.n += n
	return
}

func (r *musReader) int64() (v int64) {
	if r.err != nil {
		return
	}
	var n int
	v, n, r.err = varint.Int64.Unmarshal(r.bs[r.n:])
	r.n += n
	return
}

func (r *musReader) string() (v string) {
	if r.err != nil {
		return
	}
	var n int
	v, n, r.err = ord.String.Unmarshal(r.bs[r.n:])
	r.n += n
	return
}

func (r *musReader) time() time.Time {
	return microsToTime(r.int64())
}

func (r *musReader) floats() []float32 {
	l := r.int64()
	if r.err != nil || l <= 0 {
		return nil
	}
	v := make([]float32, 0, l)
	for i := int64(0); i < l && r.err == nil; i++ {
		var (
			f float32
			n int
		)
		f, n, r.err = raw.Float32.Unmarshal(r.bs[r.n:])
		r.n += n
		v = append(v, f)
	}
	return v
}

func (r *musReader) strings() []string {
	l := r.int64()
	if r.err != nil || l <= 0 {
		return nil
	}
	v := make([]string, 0, l)
	for i := int64(0); i < l && r.err == nil; i++ {
		v = append(v, r.string())
	}
	return v
}

func sizeTime(v time.Time) int { return varint.Int64.Size(timeToMicros(v)) }

func sizeFloats(v []float32) int {
	size := varint.Int64.Size(int64(len(v)))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func sizeStrings(v []string) int {
	size := varint.Int64.Size(int64(len(v)))
	for _, s := range v {
		size += ord.String.Size(s)
	}
	return size
}

// Zero times round-trip as zero rather than as the Unix epoch.
func timeToMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func microsToTime(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) { return varint.Uint64.Marshal(uint64(v), bs) }

func (idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (idMUS) Size(v ID) int { return varint.Uint64.Size(uint64(v)) }

type chunkMUS struct{}

func (chunkMUS) Marshal(v Chunk, bs []byte) (n int) {
	w := musWriter{bs: bs}
	w.uint64(uint64(v.ID))
	w.string(v.Text)
	w.string(v.SourceURL)
	w.uint64(uint64(v.IngestKey))
	w.time(v.CreatedAt)
	return w.n
}

func (chunkMUS) Unmarshal(bs []byte) (v Chunk, n int, err error) {
	r := musReader{bs: bs}
	v.ID = ID(r.uint64())
	v.Text = r.string()
	v.SourceURL = r.string()
	v.IngestKey = ID(r.uint64())
	v.CreatedAt = r.time()
	return v, r.n, r.err
}

func (chunkMUS) Size(v Chunk) int {
	return varint.Uint64.Size(uint64(v.ID)) +
		ord.String.Size(v.Text) +
		ord.String.Size(v.SourceURL) +
		varint.Uint64.Size(uint64(v.IngestKey)) +
		sizeTime(v.CreatedAt)
}

type userProfileMUS struct{}

func (userProfileMUS) Marshal(v UserProfile, bs []byte) (n int) {
	w := musWriter{bs: bs}
	w.string(v.UserID)
	w.string(v.Info)
	w.time(v.UpdatedAt)
	return w.n
}

func (userProfileMUS) Unmarshal(bs []byte) (v UserProfile, n int, err error) {
	r := musReader{bs: bs}
	v.UserID = r.string()
	v.Info = r.string()
	v.UpdatedAt = r.time()
	return v, r.n, r.err
}

func (userProfileMUS) Size(v UserProfile) int {
	return ord.String.Size(v.UserID) + ord.String.Size(v.Info) + sizeTime(v.UpdatedAt)
}

type conversationMUS struct{}

func (conversationMUS) Marshal(v Conversation, bs []byte) (n int) {
	w := musWriter{bs: bs}
	w.string(v.ID)
	w.string(v.UserID)
	w.time(v.CreatedAt)
	return w.n
}

func (conversationMUS) Unmarshal(bs []byte) (v Conversation, n int, err error) {
	r := musReader{bs: bs}
	v.ID = r.string()
	v.UserID = r.string()
	v.CreatedAt = r.time()
	return v, r.n, r.err
}

func (conversationMUS) Size(v Conversation) int {
	return ord.String.Size(v.ID) + ord.String.Size(v.UserID) + sizeTime(v.CreatedAt)
}

type turnMUS struct{}

func (turnMUS) Marshal(v ConversationTurn, bs []byte) (n int) {
	w := musWriter{bs: bs}
	w.string(v.ConversationID)
	w.string(v.UserID)
	w.string(string(v.Role))
	w.string(v.Content)
	w.time(v.CreatedAt)
	return w.n
}

func (turnMUS) Unmarshal(bs []byte) (v ConversationTurn, n int, err error) {
	r := musReader{bs: bs}
	v.ConversationID = r.string()
	v.UserID = r.string()
	v.Role = Role(r.string())
	v.Content = r.string()
	v.CreatedAt = r.time()
	return v, r.n, r.err
}

func (turnMUS) Size(v ConversationTurn) int {
	return ord.String.Size(v.ConversationID) +
		ord.String.Size(v.UserID) +
		ord.String.Size(string(v.Role)) +
		ord.String.Size(v.Content) +
		sizeTime(v.CreatedAt)
}

type workflowInstanceMUS struct{}

func (workflowInstanceMUS) Marshal(v WorkflowInstance, bs []byte) (n int) {
	w := musWriter{bs: bs}
	w.string(v.ID)
	w.string(v.Text)
	w.string(v.SourceURL)
	w.string(string(v.Status))
	w.int64(int64(v.ChunkCount))
	w.int64(int64(v.Failed))
	w.time(v.CreatedAt)
	w.time(v.UpdatedAt)
	return w.n
}

func (workflowInstanceMUS) Unmarshal(bs []byte) (v WorkflowInstance, n int, err error) {
	r := musReader{bs: bs}
	v.ID = r.string()
	v.Text = r.string()
	v.SourceURL = r.string()
	v.Status = WorkflowStatus(r.string())
	v.ChunkCount = int(r.int64())
	v.Failed = int(r.int64())
	v.CreatedAt = r.time()
	v.UpdatedAt = r.time()
	return v, r.n, r.err
}

func (workflowInstanceMUS) Size(v WorkflowInstance) int {
	return ord.String.Size(v.ID) +
		ord.String.Size(v.Text) +
		ord.String.Size(v.SourceURL) +
		ord.String.Size(string(v.Status)) +
		varint.Int64.Size(int64(v.ChunkCount)) +
		varint.Int64.Size(int64(v.Failed)) +
		sizeTime(v.CreatedAt) +
		sizeTime(v.UpdatedAt)
}

type stepRecordMUS struct{}

func (stepRecordMUS) Marshal(v StepRecord, bs []byte) (n int) {
	w := musWriter{bs: bs}
	w.string(v.InstanceID)
	w.string(string(v.Step))
	w.int64(int64(v.ChunkIndex))
	w.strings(v.Texts)
	w.uint64(uint64(v.ChunkID))
	w.floats(v.Vector)
	w.time(v.CompletedAt)
	return w.n
}

func (stepRecordMUS) Unmarshal(bs []byte) (v StepRecord, n int, err error) {
	r := musReader{bs: bs}
	v.InstanceID = r.string()
	v.Step = StepName(r.string())
	v.ChunkIndex = int(r.int64())
	v.Texts = r.strings()
	v.ChunkID = ID(r.uint64())
	v.Vector = r.floats()
	v.CompletedAt = r.time()
	return v, r.n, r.err
}

func (stepRecordMUS) Size(v StepRecord) int {
	return ord.String.Size(v.InstanceID) +
		ord.String.Size(string(v.Step)) +
		varint.Int64.Size(int64(v.ChunkIndex)) +
		sizeStrings(v.Texts) +
		varint.Uint64.Size(uint64(v.ChunkID)) +
		sizeFloats(v.Vector) +
		sizeTime(v.CompletedAt)
}

type vectorMUS struct{}

func (vectorMUS) Marshal(v []float32, bs []byte) (n int) {
	w := musWriter{bs: bs}
	w.floats(v)
	return w.n
}

func (vectorMUS) Unmarshal(bs []byte) (v []float32, n int, err error) {
	r := musReader{bs: bs}
	v = r.floats()
	return v, r.n, r.err
}

func (vectorMUS) Size(v []float32) int { return sizeFloats(v) }
