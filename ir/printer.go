package ir

import (
	"fmt"
	"io"
	"strings"
)

// Print writes a human-readable representation of the module.
func Print(m *Module, w io.Writer) {
	fmt.Fprintf(w, "module {num_warps = %d, threads_per_warp = %d, num_ctas = %d, ws = %v",
		m.Attrs.NumWarps, m.Attrs.ThreadsPerWarp, m.Attrs.NumCTAs, m.Attrs.WSSupported)
	if m.Attrs.WarpGroupsPerCTA > 0 {
		fmt.Fprintf(w, ", warp_groups_per_cta = %d", m.Attrs.WarpGroupsPerCTA)
	}
	fmt.Fprintln(w, "}")
	for _, g := range m.Globals {
		fmt.Fprintf(w, "global @%s : array<%d x %s>, align %d, space %d\n",
			g.Name, g.Count, TypeString(m.Types, g.Elem), g.Align, g.Space)
	}
	for _, f := range m.Funcs {
		printFunc(m, f, w)
	}
}

// String returns the printed form of the module.
func String(m *Module) string {
	var sb strings.Builder
	Print(m, &sb)
	return sb.String()
}

func printFunc(m *Module, f *Function, w io.Writer) {
	fmt.Fprintf(w, "func @%s(", f.Name)
	for i, p := range f.Params {
		if i > 0 {
			fmt.Fprint(w, ", ")
		}
		fmt.Fprintf(w, "%%v%d: %s", p, TypeString(m.Types, f.ValueType(p)))
	}
	fmt.Fprint(w, ")")
	for _, rt := range f.ResultTypes {
		fmt.Fprintf(w, " -> %s", TypeString(m.Types, rt))
	}
	if f.Kernel {
		fmt.Fprint(w, " kernel")
	}
	printFuncAttrs(f, w)
	fmt.Fprintln(w, " {")
	for bi, blk := range f.Blocks {
		if bi > 0 {
			fmt.Fprintf(w, "b%d:\n", bi)
		}
		for _, id := range blk.Ops {
			printOp(m, f, f.Op(id), w)
		}
	}
	fmt.Fprintln(w, "}")
}

func printFuncAttrs(f *Function, w io.Writer) {
	var attrs []string
	if f.Attrs.MaxThreadsPerBlock > 0 {
		attrs = append(attrs, fmt.Sprintf("max_threads = %d", f.Attrs.MaxThreadsPerBlock))
	}
	if f.Attrs.MaxWorkGroupSize != [3]int{} {
		attrs = append(attrs, fmt.Sprintf("max_work_group_size = %v", f.Attrs.MaxWorkGroupSize))
	}
	if f.Attrs.ReqdSubGroupSize > 0 {
		attrs = append(attrs, fmt.Sprintf("sub_group_size = %d", f.Attrs.ReqdSubGroupSize))
	}
	if f.Attrs.Noinline {
		attrs = append(attrs, "noinline")
	}
	if f.Attrs.AllocOffset >= 0 {
		attrs = append(attrs, fmt.Sprintf("alloc_offset = %d", f.Attrs.AllocOffset))
	}
	if len(attrs) > 0 {
		fmt.Fprintf(w, " attrs{%s}", strings.Join(attrs, ", "))
	}
}

func printOp(m *Module, f *Function, op *Op, w io.Writer) {
	fmt.Fprint(w, "  ")
	for i, r := range op.Results {
		if i > 0 {
			fmt.Fprint(w, ", ")
		}
		fmt.Fprintf(w, "%%v%d", r)
	}
	if len(op.Results) > 0 {
		fmt.Fprint(w, " = ")
	}
	fmt.Fprint(w, op.Kind.String())
	if op.Sym != "" {
		fmt.Fprintf(w, " @%s", op.Sym)
	}
	for i, a := range op.Args {
		if i > 0 {
			fmt.Fprint(w, ",")
		}
		fmt.Fprintf(w, " %%v%d", a)
	}
	printOpPayload(op, w)
	if !op.WS.Empty() {
		fmt.Fprint(w, " ws{")
		if op.WS.HasAsyncAgent {
			fmt.Fprintf(w, "async_agent = %d", op.WS.AsyncAgent)
		}
		if op.WS.HasMutexRole {
			if op.WS.HasAsyncAgent {
				fmt.Fprint(w, ", ")
			}
			fmt.Fprintf(w, "mutex_role = %d", op.WS.MutexRole)
		}
		fmt.Fprint(w, "}")
	}
	for i, r := range op.Results {
		if i == 0 {
			fmt.Fprint(w, " : ")
		} else {
			fmt.Fprint(w, ", ")
		}
		fmt.Fprint(w, TypeString(m.Types, f.ValueType(r)))
	}
	fmt.Fprintln(w)
}

func printOpPayload(op *Op, w io.Writer) {
	switch op.Kind {
	case LLConstInt, OpAsyncWait, NVVMCpAsyncWait, LLInsertValue, LLExtractValue,
		OpMakeRange, NVVMCpAsync, NVVMShfl, LLLoad, LLStore:
		fmt.Fprintf(w, " [%d]", op.IntVal)
	case LLConstFloat:
		fmt.Fprintf(w, " [%g]", op.FloatVal)
	case OpExpandDims, OpReduce, OpScan, OpGetProgramID, OpGetNumPrograms,
		NVVMThreadID, NVVMBlockID, GENXWorkitemID, GENXWorkgroupID,
		ROCDLWorkitemID, ROCDLWorkgroupID:
		fmt.Fprintf(w, " axis=%d", op.Axis)
	case OpInsertSlice, OpInsertSliceAsync:
		fmt.Fprintf(w, " axis=%d", op.Axis)
	case OpCmp, LLCmp, LLAtomicRMW:
		fmt.Fprintf(w, " pred=%d", op.IntVal)
	}
}

// TypeString renders a type handle.
func TypeString(r *TypeRegistry, t TypeHandle) string {
	if t == InvalidType {
		return "<invalid>"
	}
	typ, ok := r.Lookup(t)
	if !ok {
		return "<bad handle>"
	}
	switch inner := typ.Inner.(type) {
	case VoidType:
		return "void"
	case ScalarType:
		switch inner.Kind {
		case ScalarFloat:
			return fmt.Sprintf("f%d", inner.Bits)
		case ScalarUint:
			return fmt.Sprintf("u%d", inner.Bits)
		case ScalarPred:
			return "i1"
		default:
			return fmt.Sprintf("i%d", inner.Bits)
		}
	case PointerType:
		if inner.Pointee == InvalidType {
			return fmt.Sprintf("ptr<space %d>", inner.Space)
		}
		return fmt.Sprintf("ptr<%s, space %d>", TypeString(r, inner.Pointee), inner.Space)
	case TileType:
		var dims []string
		for _, s := range inner.Shape {
			dims = append(dims, fmt.Sprintf("%d", s))
		}
		return fmt.Sprintf("tile<%sx%s, %s>", strings.Join(dims, "x"),
			TypeString(r, inner.Elem), layoutString(inner.Layout))
	case StructType:
		var fs []string
		for _, f := range inner.Fields {
			fs = append(fs, TypeString(r, f))
		}
		return "struct<" + strings.Join(fs, ", ") + ">"
	case ArrayType:
		return fmt.Sprintf("array<%d x %s>", inner.Count, TypeString(r, inner.Elem))
	default:
		return fmt.Sprintf("<%T>", inner)
	}
}

func layoutString(l Layout) string {
	switch l := l.(type) {
	case BlockedLayout:
		return fmt.Sprintf("blocked<%v, %v, %v>", l.SizePerThread, l.ThreadsPerWarp, l.WarpsPerCTA)
	case SharedLayout:
		return fmt.Sprintf("shared<vec=%d>", l.Vec)
	case nil:
		return "none"
	default:
		return fmt.Sprintf("<%T>", l)
	}
}
