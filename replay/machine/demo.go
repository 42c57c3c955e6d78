package machine

// Demo returns the built-in definition the CLI falls back to when no machine
// file is given: a counter, a one-dimensional kinematics chain, a small
// object pool with a spawn schedule, and two floor surfaces.
func Demo() *Def {
	return &Def{
		Name: "demo",
		Globals: []GlobalDef{
			{Name: "timer", Kind: "u32", Rule: "increment"},
			{Name: "coins", Kind: "u16"},
			{Name: "pos_x", Kind: "f32", Rule: "integrate", By: "vel_x"},
			{Name: "vel_x", Kind: "f32", Init: 1.5, Rule: "integrate", By: "acc_x"},
			{Name: "acc_x", Kind: "f32"},
		},
		Objects: &ObjectsDef{
			Count: 8,
			Spawns: []SpawnDef{
				{Slot: 0, Frame: 0, Behavior: "bhvWanderer"},
				{Slot: 1, Frame: 30, Until: 240, Behavior: "bhvDrifter"},
				{Slot: 2, Frame: 120, Behavior: "bhvSentry"},
			},
		},
		Surfaces: &SurfacesDef{
			Count:   4,
			Heights: []float64{0, 25.5},
		},
	}
}
