package domain

type OpType string

const (
	OpAddMember         OpType = "AddMember"
	OpUpdateMember      OpType = "UpdateMember"
	OpRemoveMember      OpType = "RemoveMember"
	OpAddCursor         OpType = "AddCursor"
	OpRemoveCursor      OpType = "RemoveCursor"
	OpMoveCursor        OpType = "MoveCursor"
	OpSetBlob           OpType = "SetBlob"
	OpRemoveBlob        OpType = "RemoveBlob"
	OpAddStyle          OpType = "AddStyle"
	OpRemoveStyle       OpType = "RemoveStyle"
	OpInsertText        OpType = "InsertText"
	OpRemoveText        OpType = "RemoveText"
	OpSplitParagraph    OpType = "SplitParagraph"
	OpSetParagraphStyle OpType = "SetParagraphStyle"
	OpUpdateMetadata    OpType = "UpdateMetadata"
)
