package warts

// CycleField enumerates the optional fields of cycle objects.
type CycleField int

const (
	CycleStopTime CycleField = iota
	CycleHostname
)

// Cycle is one iteration over a list.
type Cycle struct {
	WCycleID uint32
	ListID   uint32
	CycleID  uint32
	Start    uint32
	Stop     uint32
	Hostname string

	// Stopped is set once a cycle stop object for this cycle was seen.
	Stopped bool

	present FieldSet
}

var cycleSchema = schema[Cycle]{
	CycleStopTime: u32Field("stoptime", func(c *Cycle) *uint32 { return &c.Stop }),
	CycleHostname: stringField("hostname", func(c *Cycle) *string { return &c.Hostname }),
}

func (c *Cycle) Has(f CycleField) bool { return c.present.Has(int(f)) }

func (c *Cycle) Params() Fields { return cycleSchema.fields(c.present, c) }

// readCycle handles both cycle start and cycle definition objects.
func (d *Decoder) readCycle(st *state) error {
	var (
		c   Cycle
		err error
	)
	for _, p := range []*uint32{&c.WCycleID, &c.ListID, &c.CycleID, &c.Start} {
		if *p, err = st.r.u32(); err != nil {
			return err
		}
	}
	if c.present, err = decodeFlags(st, cycleSchema, &c); err != nil {
		return err
	}
	d.state.Cycle = c
	d.opts.Logger.Debugf("cycle %d list %d id %d start %d", c.WCycleID, c.ListID, c.CycleID, c.Start)
	return nil
}

func (d *Decoder) readCycleStop(st *state) error {
	var (
		c   Cycle
		err error
	)
	if c.WCycleID, err = st.r.u32(); err != nil {
		return err
	}
	if c.Stop, err = st.r.u32(); err != nil {
		return err
	}
	if c.present, err = decodeFlags(st, cycleSchema, &c); err != nil {
		return err
	}
	if d.state.Cycle.WCycleID == c.WCycleID {
		d.state.Cycle.Stop = c.Stop
		d.state.Cycle.Stopped = true
	} else {
		d.opts.Logger.Warnf("cycle stop for cycle %d while cycle %d is current", c.WCycleID, d.state.Cycle.WCycleID)
	}
	return nil
}
