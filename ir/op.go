package ir

// OpKind identifies an operation. Kinds are grouped into dialects by
// contiguous ranges; see Dialect.
type OpKind uint16

// Tile dialect: the mid-level, layout-aware operations.
const (
	OpInvalid OpKind = iota

	opTileBegin
	OpMakeRange     // [IntVal, IntVal+n) per Shape
	OpSplat         // scalar -> tile
	OpBroadcast     // tile -> larger tile
	OpExpandDims    // insert size-1 dim at Axis
	OpReshape       // same element count, new shape
	OpConvertLayout // tile -> tile with different layout
	OpAllocTensor   // materialize an uninitialized shared tile
	OpLoad          // Args: ptr[, mask[, other]]
	OpStore         // Args: ptr, value[, mask]
	OpAddPtr        // Args: ptr tile, offset tile
	OpMakeTensorPtr // Args: base, shape..., strides..., offsets...; IntVal = rank
	OpAdvance       // Args: tensor ptr, deltas...
	OpInsertSliceAsync
	OpInsertSlice
	OpAsyncCommitGroup
	OpAsyncWait // IntVal = pending groups to allow
	OpBarrier
	OpDot    // Args: a, b, acc
	OpReduce // Axis; IntVal = ReduceKind
	OpScan   // Axis; inclusive prefix sum
	OpHistogram
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpAnd
	OpOr
	OpXor
	OpCmp // IntVal = CmpPred
	OpSelect
	OpExp
	OpLog
	OpSqrt
	OpGetProgramID  // Axis
	OpGetNumPrograms
	OpCall // Sym = callee
	OpReturn
	opTileEnd
)

// Low-level dialect: scalar registers and raw pointers.
const (
	opLLBegin OpKind = opTileEnd + iota
	LLConstInt
	LLConstFloat
	LLUndef
	LLInsertValue  // IntVal = field index
	LLExtractValue // IntVal = field index
	LLGEP          // TypeArg = element type; Args: ptr, offset
	LLBitcast
	LLAddrSpaceCast
	LLLoad  // IntVal = vector width in elements
	LLStore // IntVal = vector width; Args: ptr, value[, pred]
	LLAtomicRMW
	LLAdd
	LLSub
	LLMul
	LLDiv
	LLAnd
	LLOr
	LLXor
	LLCmp
	LLSelect
	LLCall // Sym = callee or intrinsic symbol
	LLReturn
	LLAddrOf // Sym = global name
	opLLEnd
)

// NVVM native dialect.
const (
	opNVVMBegin OpKind = opLLEnd + iota
	NVVMThreadID // Axis
	NVVMBlockID  // Axis
	NVVMBarrier0
	NVVMShfl // IntVal = offset
	NVVMClusterCTAID
	NVVMCpAsync // IntVal = bytes per copy
	NVVMCpAsyncCommit
	NVVMCpAsyncWait // IntVal = pending groups
	opNVVMEnd
)

// GENX native dialect.
const (
	opGENXBegin OpKind = opNVVMEnd + iota
	GENXWorkitemID  // Axis
	GENXWorkgroupID // Axis
	GENXBarrier
	GENXSlmBase
	opGENXEnd
)

// ROCDL native dialect.
const (
	opROCDLBegin OpKind = opGENXEnd + iota
	ROCDLWorkitemID  // Axis
	ROCDLWorkgroupID // Axis
	ROCDLBarrier
	opROCDLEnd
)

// OpBridge is the always-legal utility cast bridging type mismatches
// between not-yet-rewritten producers and already-rewritten consumers.
const OpBridge OpKind = opROCDLEnd + 1

// Dialect identifies the operation set a kind belongs to.
type Dialect uint8

const (
	DialectTile Dialect = iota
	DialectLL
	DialectNVVM
	DialectGENX
	DialectROCDL
	DialectBridge
	DialectUnknown
)

// KindDialect returns the dialect a kind belongs to.
func KindDialect(k OpKind) Dialect {
	switch {
	case k > opTileBegin && k < opTileEnd:
		return DialectTile
	case k > opLLBegin && k < opLLEnd:
		return DialectLL
	case k > opNVVMBegin && k < opNVVMEnd:
		return DialectNVVM
	case k > opGENXBegin && k < opGENXEnd:
		return DialectGENX
	case k > opROCDLBegin && k < opROCDLEnd:
		return DialectROCDL
	case k == OpBridge:
		return DialectBridge
	default:
		return DialectUnknown
	}
}

// ReduceKind values for OpReduce.IntVal.
const (
	ReduceAdd int64 = iota
	ReduceMax
	ReduceMin
)

// CmpPred values for OpCmp/LLCmp.IntVal.
const (
	CmpEQ int64 = iota
	CmpNE
	CmpLT
	CmpLE
	CmpGT
	CmpGE
)

// AtomicKind values for LLAtomicRMW.IntVal.
const (
	AtomicAdd int64 = iota
	AtomicMax
	AtomicMin
)

// WSTags carries the warp-specialization scheme's metadata. Every
// rewrite that replaces an operation copies the whole struct so the
// tags survive lowering verbatim.
type WSTags struct {
	AsyncAgent    int64
	MutexRole     int64
	HasAsyncAgent bool
	HasMutexRole  bool
}

// Empty reports whether no tag is set.
func (t WSTags) Empty() bool { return !t.HasAsyncAgent && !t.HasMutexRole }

// Op is one operation node. Typed payload fields replace the original
// free-form attribute dictionary; which fields are meaningful depends
// on Kind.
type Op struct {
	Kind    OpKind
	Args    []ValueID
	Results []ValueID

	Axis     int
	IntVal   int64
	FloatVal float64
	Sym      string
	TypeArg  TypeHandle

	WS WSTags

	block *Block
	dead  bool
}

// Dead reports whether the operation has been erased.
func (o *Op) Dead() bool { return o.dead }

// HasSideEffects reports whether the operation must be kept even when
// all of its results are unused.
func (o *Op) HasSideEffects() bool {
	switch o.Kind {
	case OpStore, OpBarrier, OpAsyncCommitGroup, OpAsyncWait,
		OpInsertSliceAsync, OpCall, OpReturn,
		LLStore, LLAtomicRMW, LLCall, LLReturn,
		NVVMBarrier0, NVVMCpAsync, NVVMCpAsyncCommit, NVVMCpAsyncWait,
		GENXBarrier, ROCDLBarrier:
		return true
	}
	return false
}

var opKindNames = map[OpKind]string{
	OpMakeRange:        "tile.make_range",
	OpSplat:            "tile.splat",
	OpBroadcast:        "tile.broadcast",
	OpExpandDims:       "tile.expand_dims",
	OpReshape:          "tile.reshape",
	OpConvertLayout:    "tile.convert_layout",
	OpAllocTensor:      "tile.alloc_tensor",
	OpLoad:             "tile.load",
	OpStore:            "tile.store",
	OpAddPtr:           "tile.addptr",
	OpMakeTensorPtr:    "tile.make_tensor_ptr",
	OpAdvance:          "tile.advance",
	OpInsertSliceAsync: "tile.insert_slice_async",
	OpInsertSlice:      "tile.insert_slice",
	OpAsyncCommitGroup: "tile.async_commit_group",
	OpAsyncWait:        "tile.async_wait",
	OpBarrier:          "tile.barrier",
	OpDot:              "tile.dot",
	OpReduce:           "tile.reduce",
	OpScan:             "tile.scan",
	OpHistogram:        "tile.histogram",
	OpAdd:              "tile.add",
	OpSub:              "tile.sub",
	OpMul:              "tile.mul",
	OpDiv:              "tile.div",
	OpAnd:              "tile.and",
	OpOr:               "tile.or",
	OpXor:              "tile.xor",
	OpCmp:              "tile.cmp",
	OpSelect:           "tile.select",
	OpExp:              "tile.exp",
	OpLog:              "tile.log",
	OpSqrt:             "tile.sqrt",
	OpGetProgramID:     "tile.get_program_id",
	OpGetNumPrograms:   "tile.get_num_programs",
	OpCall:             "tile.call",
	OpReturn:           "tile.return",

	LLConstInt:      "ll.const_int",
	LLConstFloat:    "ll.const_float",
	LLUndef:         "ll.undef",
	LLInsertValue:   "ll.insertvalue",
	LLExtractValue:  "ll.extractvalue",
	LLGEP:           "ll.gep",
	LLBitcast:       "ll.bitcast",
	LLAddrSpaceCast: "ll.addrspacecast",
	LLLoad:          "ll.load",
	LLStore:         "ll.store",
	LLAtomicRMW:     "ll.atomicrmw",
	LLAdd:           "ll.add",
	LLSub:           "ll.sub",
	LLMul:           "ll.mul",
	LLDiv:           "ll.div",
	LLAnd:           "ll.and",
	LLOr:            "ll.or",
	LLXor:           "ll.xor",
	LLCmp:           "ll.cmp",
	LLSelect:        "ll.select",
	LLCall:          "ll.call",
	LLReturn:        "ll.return",
	LLAddrOf:        "ll.addrof",

	NVVMThreadID:      "nvvm.tid",
	NVVMBlockID:       "nvvm.ctaid",
	NVVMBarrier0:      "nvvm.barrier0",
	NVVMShfl:          "nvvm.shfl",
	NVVMClusterCTAID:  "nvvm.cluster_ctaid",
	NVVMCpAsync:       "nvvm.cp_async",
	NVVMCpAsyncCommit: "nvvm.cp_async_commit",
	NVVMCpAsyncWait:   "nvvm.cp_async_wait",

	GENXWorkitemID:  "genx.workitem_id",
	GENXWorkgroupID: "genx.workgroup_id",
	GENXBarrier:     "genx.barrier",
	GENXSlmBase:     "genx.slm_base",

	ROCDLWorkitemID:  "rocdl.workitem_id",
	ROCDLWorkgroupID: "rocdl.workgroup_id",
	ROCDLBarrier:     "rocdl.barrier",

	OpBridge: "bridge.cast",
}

// String returns the dotted dialect.op spelling of the kind.
func (k OpKind) String() string {
	if name, ok := opKindNames[k]; ok {
		return name
	}
	return "op.invalid"
}
