// Package matroska implements the Matroska/WebM specialisation of the
// generic tree element (C4), the SeekHead model (C5), the Cues updater
// (C6), the segment planner (C8), the segment writer (C9), and the
// container lifecycle that ties them together. Element ID constants are
// merged from the teacher's ebml.go and the larger table carried by
// luispater-gemini-srt-translator-go (same author, other_examples/), which
// additionally names the Cues/BlockGroup/Position fields the planner needs.
package matroska

// EBML header IDs.
const (
	IDEBMLHeader             = 0x1A45DFA3
	IDEBMLVersion            = 0x4286
	IDEBMLReadVersion        = 0x42F7
	IDEBMLMaxIDLength        = 0x42F2
	IDEBMLMaxSizeLength      = 0x42F3
	IDDocType                = 0x4282
	IDDocTypeVersion         = 0x4287
	IDDocTypeReadVersion     = 0x4285
)

// Top-level and Segment-level IDs.
const (
	IDSegment = 0x18538067
	IDVoid    = 0xEC
	IDCRC32   = 0xBF

	IDSeekHead = 0x114D9B74
	IDSeek     = 0x4DBB
	IDSeekID   = 0x53AB
	IDSeekPos  = 0x53AC

	IDSegmentInfo   = 0x1549A966
	IDSegmentUID    = 0x73A4
	IDSegmentFName  = 0x7384
	IDPrevUID       = 0x3CB923
	IDPrevFilename  = 0x3C83AB
	IDNextUID       = 0x3EB923
	IDNextFilename  = 0x3E83BB
	IDTimecodeScale = 0x2AD7B1
	IDDuration      = 0x4489
	IDDateUTC       = 0x4461
	IDTitle         = 0x7BA9
	IDMuxingApp     = 0x4D80
	IDWritingApp    = 0x5741

	IDTracks     = 0x1654AE6B
	IDTrackEntry = 0xAE
	IDTrackNum   = 0xD7
	IDTrackUID   = 0x73C5
	IDTrackType  = 0x83
	IDFlagEnabled = 0xB9
	IDFlagDefault = 0x88
	IDFlagForced  = 0x55AA
	IDFlagLacing  = 0x9C
	IDTrackName  = 0x536E
	IDLanguage   = 0x22B59C
	IDCodecID    = 0x86
	IDCodecPriv  = 0x63A2
	IDCodecName  = 0x258688
	IDVideo      = 0xE0
	IDAudio      = 0xE1

	IDFlagInterlaced = 0x9A
	IDPixelWidth     = 0xB0
	IDPixelHeight    = 0xBA
	IDDisplayWidth   = 0x54B0
	IDDisplayHeight  = 0x54BA

	IDSamplingFrequency       = 0xB5
	IDOutputSamplingFrequency = 0x78B5
	IDChannels                = 0x9F
	IDBitDepth                = 0x6264

	IDCluster     = 0x1F43B675
	IDTimestamp   = 0xE7
	IDPosition    = 0xA7
	IDPrevSize    = 0xAB
	IDSimpleBlock = 0xA3
	IDBlockGroup  = 0xA0
	IDBlock       = 0xA1
	IDBlockDuration = 0x9B

	IDCues               = 0x1C53BB6B
	IDCuePoint           = 0xBB
	IDCueTime            = 0xB3
	IDCueTrackPositions  = 0xB7
	IDCueTrack           = 0xF7
	IDCueClusterPosition = 0xF1
	IDCueRelativePosition = 0xF0
	IDCueDuration        = 0xB2
	IDCueBlockNumber     = 0x5378
	IDCueCodecState      = 0xEA
	IDCueReference       = 0xDB

	IDChapters     = 0x1043A770
	IDEditionEntry = 0x45B9
	IDChapterAtom  = 0xB6
	IDChapterUID   = 0x73C4
	IDChapterTimeStart = 0x91
	IDChapterTimeEnd   = 0x92
	IDChapterDisplay   = 0x80
	IDChapString       = 0x85
	IDChapLanguage     = 0x437C

	IDTags         = 0x1254C367
	IDTag          = 0x7373
	IDTargets      = 0x63C0
	IDTargetTypeValue = 0x68CA
	IDTargetType   = 0x63CA
	IDTagTrackUID  = 0x63C5
	IDTagChapterUID = 0x63C4
	IDTagAttachmentUID = 0x63C6
	IDSimpleTag    = 0x67C8
	IDTagName      = 0x45A3
	IDTagLanguage  = 0x447A
	IDTagDefault   = 0x4484
	IDTagString    = 0x4487
	IDTagBinary    = 0x4485

	IDAttachments  = 0x1941A469
	IDAttachedFile = 0x61A7
	IDFileDescription = 0x467E
	IDFileName     = 0x466E
	IDFileMimeType = 0x4660
	IDFileData     = 0x465C
	IDFileUID      = 0x46AE
)
