package types

// Size queries dispatch on the head constructor of a type. A type has
// a bit-level representation when it is built from the bit-level
// primitives; reference and function types have byte-level (pointer)
// representations only.

// BitSize returns the width in bits of the type's bit-level
// representation, or false when the type has none.
func BitSize(t Type, env *TyconEnv) (uint64, bool) {
	head, args := Spine(t)
	if s := synonymHead(head); s != nil {
		if expanded, ok := s.Expand(args); ok {
			return BitSize(expanded, env)
		}
	}
	switch h := head.(type) {
	case *TCon:
		switch con := h.Con.(type) {
		case *PrimCon:
			switch con {
			case env.BitCon:
				if n, ok := natArg(args, 0); ok {
					return n, true
				}
			case env.IxCon:
				if n, ok := natArg(args, 0); ok {
					return ixBits(n), true
				}
			case env.WordCon:
				return env.WordBits, true
			case env.FlagCon:
				return 1, true
			}
		case *TupleCon:
			// A tuple of bit-level components concatenates.
			var total uint64
			for _, a := range args {
				n, ok := BitSize(a, env)
				if !ok {
					return 0, false
				}
				total += n
			}
			return total, true
		}
	}
	return 0, false
}

// ByteSize returns the width in bytes of the type's memory
// representation, or false when the type has none. Reference types
// (ARef, closures, functions) occupy one pointer.
func ByteSize(t Type, env *TyconEnv, ptrBytes uint64) (uint64, bool) {
	head, args := Spine(t)
	if s := synonymHead(head); s != nil {
		if expanded, ok := s.Expand(args); ok {
			return ByteSize(expanded, env, ptrBytes)
		}
	}
	if h, ok := head.(*TCon); ok {
		switch h.Con.(type) {
		case *ArrowCon, *DataName:
			return ptrBytes, true
		case *PrimCon:
			if h.Con == env.ARefCon {
				return ptrBytes, true
			}
		}
	}
	if bits, ok := BitSize(t, env); ok {
		return (bits + 7) / 8, true
	}
	return 0, false
}

func natArg(args []Type, i int) (uint64, bool) {
	if i >= len(args) {
		return 0, false
	}
	if n, ok := Resolve(args[i]).(TNat); ok {
		return n.Val, true
	}
	return 0, false
}

// ixBits is the width needed to hold an index 0..n-1.
func ixBits(n uint64) uint64 {
	if n <= 1 {
		return 0
	}
	var bits uint64
	for m := n - 1; m > 0; m >>= 1 {
		bits++
	}
	return bits
}
