package types

// Unify makes two types equal by binding variables on either side.
// It fails with a *MismatchError, *OccursError, or *KindError.
// Variables are dereferenced at the root on every step, so earlier
// bindings stay in effect; synonym heads expand with the same level
// discipline Same uses.
func Unify(a, b Type) error {
	return unifyWith(a, b, false)
}

// Match is one-directional unification: only variables on the
// receiver (left) side may bind. A failing Match can leave earlier
// bindings in place; callers match only fresh, unshared variables so
// no rollback discipline is needed.
func Match(a, b Type) error {
	return unifyWith(a, b, true)
}

func unifyWith(a, b Type, oneWay bool) error {
	ha, aa := Spine(a)
	hb, ab := Spine(b)

	// Variable at either root binds to the whole other side.
	if va, ok := ha.(*TVar); ok && len(aa) == 0 {
		return bindVar(va, applySpine(hb, ab))
	}
	if vb, ok := hb.(*TVar); ok && len(ab) == 0 && !oneWay {
		return bindVar(vb, applySpine(ha, aa))
	}

	sa := synonymHead(ha)
	sb := synonymHead(hb)
	switch {
	case sa != nil && sb != nil && !(sa == sb && len(aa) == len(ab)):
		if sa.Level < sb.Level {
			if eb, ok := sb.Expand(ab); ok {
				return unifyWith(applySpine(ha, aa), eb, oneWay)
			}
		} else if sa.Level > sb.Level {
			if ea, ok := sa.Expand(aa); ok {
				return unifyWith(ea, applySpine(hb, ab), oneWay)
			}
		} else {
			ea, okA := sa.Expand(aa)
			eb, okB := sb.Expand(ab)
			if okA && okB {
				return unifyWith(ea, eb, oneWay)
			}
		}
	case sa != nil && sb == nil:
		if ea, ok := sa.Expand(aa); ok {
			return unifyWith(ea, applySpine(hb, ab), oneWay)
		}
	case sb != nil && sa == nil:
		if eb, ok := sb.Expand(ab); ok {
			return unifyWith(applySpine(ha, aa), eb, oneWay)
		}
	}

	// Applications with variable heads peel arguments pairwise: the
	// leftover prefix on the longer side unifies with the head.
	if len(aa) != len(ab) {
		_, headVarA := ha.(*TVar)
		_, headVarB := hb.(*TVar)
		if (headVarA || headVarB) && len(aa) > 0 && len(ab) > 0 {
			n := len(aa)
			if len(ab) < n {
				n = len(ab)
			}
			for i := 1; i <= n; i++ {
				if err := unifyWith(aa[len(aa)-i], ab[len(ab)-i], oneWay); err != nil {
					return err
				}
			}
			return unifyWith(applySpine(ha, aa[:len(aa)-n]), applySpine(hb, ab[:len(ab)-n]), oneWay)
		}
		return &MismatchError{Expected: applySpine(ha, aa), Actual: applySpine(hb, ab)}
	}

	if !headSame(ha, hb) {
		// A variable head binds to the other head when the arities
		// line up.
		if va, ok := ha.(*TVar); ok {
			if err := bindVar(va, hb); err != nil {
				return err
			}
		} else if vb, ok := hb.(*TVar); ok && !oneWay {
			if err := bindVar(vb, ha); err != nil {
				return err
			}
		} else {
			return &MismatchError{Expected: applySpine(ha, aa), Actual: applySpine(hb, ab)}
		}
	}
	for i := range aa {
		if err := unifyWith(aa[i], ab[i], oneWay); err != nil {
			return err
		}
	}
	return nil
}

// bindVar writes the indirection cell of v after the occurs and kind
// checks.
func bindVar(v *TVar, t Type) error {
	t = Resolve(t)
	if tv, ok := t.(*TVar); ok && tv == v {
		return nil
	}
	if occurs(v, t) {
		return &OccursError{Var: v, In: t}
	}
	if !v.Kind().Same(t.Kind()) {
		return &KindError{Left: v.Kind(), Right: t.Kind()}
	}
	v.Bound = t
	return nil
}

func occurs(v *TVar, t Type) bool {
	switch t := Resolve(t).(type) {
	case *TVar:
		return t == v
	case *TAp:
		return occurs(v, t.Fun) || occurs(v, t.Arg)
	default:
		return false
	}
}
