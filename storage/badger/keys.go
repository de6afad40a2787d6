package badger

import (
	"encoding/binary"

	"github.com/poiesic/placefinder/core"
)

// Key prefixes for different data types. The trailing separator keeps
// prefix scans from bleeding into neighbouring key spaces.
const (
	recordPrefix         = "rec:"
	recordExternalPrefix = "recext:"
	recordIDSeq          = "recseq"
	jobPrefix            = "job:"
)

// makeRecordKey generates a key for a catalog record by ID.
// Format: prefix + big-endian id, so iteration follows ID order.
func makeRecordKey(id core.ID) []byte {
	return appendID([]byte(recordPrefix), id)
}

// makeExternalIDKey generates the unique index key for a provider id.
func makeExternalIDKey(externalID string) []byte {
	buf := make([]byte, 0, len(recordExternalPrefix)+len(externalID))
	buf = append(buf, recordExternalPrefix...)
	return append(buf, externalID...)
}

// makeJobKey generates a key for one classification attempt of a record.
// Format: prefix + big-endian record id + big-endian attempt, so the attempts
// of a record are adjacent and iterate oldest first.
func makeJobKey(recordID core.ID, attempt int) []byte {
	return binary.BigEndian.AppendUint32(makeJobPrefix(recordID), uint32(attempt))
}

// makeJobPrefix generates the prefix shared by every attempt of a record.
func makeJobPrefix(recordID core.ID) []byte {
	return appendID([]byte(jobPrefix), recordID)
}

func appendID(prefix []byte, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(prefix, uint64(id))
}
