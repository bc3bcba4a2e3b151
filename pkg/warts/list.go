package warts

// ListField enumerates the optional fields of a list object.
type ListField int

const (
	ListDescription ListField = iota
	ListMonitor
)

// List identifies the measurement campaign later traces and pings belong to.
type List struct {
	WListID     uint32 // id assigned by the writer, referenced by cycles and records
	ListID      uint32
	Name        string
	Description string
	Monitor     string

	present FieldSet
}

var listSchema = schema[List]{
	ListDescription: stringField("description", func(l *List) *string { return &l.Description }),
	ListMonitor:     stringField("monitor", func(l *List) *string { return &l.Monitor }),
}

func (l *List) Has(f ListField) bool { return l.present.Has(int(f)) }

func (l *List) Params() Fields { return listSchema.fields(l.present, l) }

func (d *Decoder) readList(st *state) error {
	var (
		l   List
		err error
	)
	if l.WListID, err = st.r.u32(); err != nil {
		return err
	}
	if l.ListID, err = st.r.u32(); err != nil {
		return err
	}
	if l.Name, err = st.r.cstring(); err != nil {
		return err
	}
	if l.present, err = decodeFlags(st, listSchema, &l); err != nil {
		return err
	}
	d.state.List = l
	d.opts.Logger.Debugf("list %d (%d) %q", l.WListID, l.ListID, l.Name)
	return nil
}
