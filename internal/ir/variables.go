package ir

// VariableInfo records where a variable is defined (if at all) and every
// site where it is used as a source operand. Names with a nil DefSite are
// program inputs: they flow into the unit without a local definition.
type VariableInfo struct {
	DefSite *Site
	Uses    []Site
}

// GetVariables rebuilds the variable map from scratch by scanning every
// statement in document order. Analysis state like this is always derived,
// never persisted on the IR, so that no pass needs to keep it in sync
// across a mutation it makes to a sibling statement.
func GetVariables(c *Code) map[string]*VariableInfo {
	vars := make(map[string]*VariableInfo)
	get := func(name string) *VariableInfo {
		v, ok := vars[name]
		if !ok {
			v = &VariableInfo{}
			vars[name] = v
		}
		return v
	}
	for _, b := range c.Blocks {
		for idx, op := range b.Code {
			site := Site{Block: b.Name, Statement: idx}
			if op.HasDest() {
				s := site
				get(op.Dest).DefSite = &s
			}
			for _, src := range op.Src {
				if IsVar(src) {
					v := get(src)
					v.Uses = append(v.Uses, site)
				}
			}
		}
	}
	return vars
}
