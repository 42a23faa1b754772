package walredo

import (
	"encoding/binary"

	"github.com/ondracky/walredo/internal/constants"
	"github.com/ondracky/walredo/internal/walproto"
)

// applyInProcess replays records against a working page for every tag
// family except Relation, which is always redone by the external process.
// Decoding malformed records of the two recognized families panics: the WAL
// stream reaching this path is trusted input of known shape.
func applyInProcess(tag RelishTag, blknum uint32, baseImg []byte, records []RedoRecord, metrics MetricsRegistry) ([]byte, error) {
	if _, ok := tag.(RelationTag); ok {
		return nil, NewError("applyInProcess", KindInvalidRequest, "relation tag reached in-process redo path")
	}

	page := make([]byte, constants.PageSize)
	if baseImg != nil {
		if len(baseImg) != constants.PageSize {
			return nil, NewError("applyInProcess", KindInvalidRequest, "base image must be exactly one page")
		}
		copy(page, baseImg)
	}

	for _, rr := range records {
		metrics.AddReplayedRecords(1)
		applyOneRecord(tag, blknum, page, rr.Record)
	}

	return page, nil
}

func applyOneRecord(tag RelishTag, blknum uint32, page []byte, rec WALRecord) {
	hdr := walproto.DecodeXLogRecordHeader(rec.Body)
	mainData := rec.Body[walproto.SizeOfXLogRecord:]

	skip := int(rec.MainDataOffset) - walproto.SizeOfXLogRecord
	if skip > 0 && len(mainData) > skip {
		mainData = mainData[skip:]
	}

	switch hdr.Rmid {
	case constants.RMXactID:
		applyXactRecord(tag, blknum, page, mainData, hdr)
	case constants.RMMultiXactID:
		applyMultiXactRecord(tag, blknum, page, mainData, hdr)
	default:
		// Other resource managers are ignored: the working buffer is
		// returned unchanged.
	}
}

func applyXactRecord(tag RelishTag, blknum uint32, page []byte, mainData []byte, hdr walproto.XLogRecordHeader) {
	segTag, ok := tag.(SlruTag)
	if !ok || segTag.Kind != SlruClog {
		panic("walredo: RM_XACT_ID record applied against a non-Clog tag")
	}

	parsed := walproto.DecodeParsedXact(mainData, hdr.Xid, hdr.Info)

	var status byte
	switch parsed.Info & constants.XLogXactOpMask {
	case constants.XLogXactCommit, constants.XLogXactCommitPrepared:
		status = constants.TransactionStatusCommitted
	case constants.XLogXactAbort, constants.XLogXactAbortPrepared:
		status = constants.TransactionStatusAborted
	default:
		return
	}

	// The main xid's page relationship is assumed by the caller: its slot
	// is written unconditionally, without checking it lies on the
	// requested page. Subxacts are checked individually below. This
	// asymmetry is deliberate; see the module's design notes.
	constants.SetTransactionStatus(page, parsed.Xid, status)

	for _, sx := range parsed.Subxacts {
		pageno := sx / constants.CLOGXactsPerPage
		segno := pageno / constants.SLRUPagesPerSegment
		rpageno := pageno % constants.SLRUPagesPerSegment
		if segno == segTag.Segno && rpageno == blknum {
			constants.SetTransactionStatus(page, sx, status)
		}
	}
}

func applyMultiXactRecord(tag RelishTag, blknum uint32, page []byte, mainData []byte, hdr walproto.XLogRecordHeader) {
	info := hdr.Info & constants.XLRRmgrInfoMask
	if info != constants.XLogMultiXactCreateID {
		return
	}

	xlrec := walproto.DecodeMultiXactCreate(mainData)

	segTag, ok := tag.(SlruTag)
	if !ok {
		panic("walredo: RM_MULTIXACT_ID record applied against a non-Slru tag")
	}

	switch segTag.Kind {
	case SlruMultiXactMembers:
		applyMultiXactMembers(blknum, page, segTag.Segno, xlrec)
	case SlruMultiXactOffsets:
		applyMultiXactOffsets(page, xlrec)
	default:
		panic("walredo: RM_MULTIXACT_ID create record applied against a non-multixact Slru tag")
	}
}

func applyMultiXactMembers(blknum uint32, page []byte, recSegno uint32, xlrec walproto.MultiXactCreate) {
	for i := uint32(0); i < uint32(xlrec.NMembers); i++ {
		pageno := i / constants.MultiXactMembersPerPage
		segno := pageno / constants.SLRUPagesPerSegment
		rpageno := pageno % constants.SLRUPagesPerSegment
		if segno != recSegno || rpageno != blknum {
			continue
		}

		offset := xlrec.Moff + i
		memberoff := constants.MxOffsetToMemberOffset(offset)
		flagsoff := constants.MxOffsetToFlagsOffset(offset)
		bshift := constants.MxOffsetToFlagsBitshift(offset)

		flags := binary.LittleEndian.Uint32(page[flagsoff : flagsoff+4])
		flags &^= ((uint32(1) << constants.MXactMemberBitsPerXact) - 1) << bshift
		flags |= xlrec.Members[i].Status << bshift
		binary.LittleEndian.PutUint32(page[flagsoff:flagsoff+4], flags)

		binary.LittleEndian.PutUint32(page[memberoff:memberoff+4], xlrec.Members[i].Xid)
	}
}

func applyMultiXactOffsets(page []byte, xlrec walproto.MultiXactCreate) {
	offs := (xlrec.Mid % constants.MultiXactOffsetsPerPage) * 4
	binary.LittleEndian.PutUint32(page[offs:offs+4], xlrec.Moff)
}
