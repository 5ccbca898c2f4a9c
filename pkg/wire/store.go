package wire

// StoreOperation is one of StoreSave, StoreList or StoreDelete.
type StoreOperation interface {
	Marshaler
	Catalog() string
}

// StoreSave inserts or replaces the item id in catalog.
type StoreSave struct {
	CatalogName string
	ID          string
	Data        []byte
}

type StoreList struct {
	CatalogName string
}

type StoreDelete struct {
	CatalogName string
	ID          string
}

func (o StoreSave) Catalog() string   { return o.CatalogName }
func (o StoreList) Catalog() string   { return o.CatalogName }
func (o StoreDelete) Catalog() string { return o.CatalogName }

func (o StoreSave) MarshalWire(e *Encoder) {
	e.Variant(0)
	e.String(o.CatalogName)
	e.String(o.ID)
	e.ByteBuf(o.Data)
}

func (o StoreList) MarshalWire(e *Encoder) {
	e.Variant(1)
	e.String(o.CatalogName)
}

func (o StoreDelete) MarshalWire(e *Encoder) {
	e.Variant(2)
	e.String(o.CatalogName)
	e.String(o.ID)
}

func ReadStoreOperation(d *Decoder) StoreOperation {
	switch tag := d.Variant(); tag {
	case 0:
		return StoreSave{CatalogName: d.String(), ID: d.String(), Data: d.ByteBuf()}
	case 1:
		return StoreList{CatalogName: d.String()}
	case 2:
		return StoreDelete{CatalogName: d.String(), ID: d.String()}
	default:
		d.Unknown("StoreOperation", tag)
		return nil
	}
}

type StoreItem struct {
	ID   string
	Data []byte
}

// StoreResponse is one of StoreSaved, StoreListed or StoreDeleted.
type StoreResponse interface {
	Marshaler
	storeResponse()
}

type StoreSaved struct{}

type StoreListed struct {
	Entries []StoreItem
}

type StoreDeleted struct{}

func (StoreSaved) storeResponse()   {}
func (StoreListed) storeResponse()  {}
func (StoreDeleted) storeResponse() {}

func (StoreSaved) MarshalWire(e *Encoder) { e.Variant(0) }

func (r StoreListed) MarshalWire(e *Encoder) {
	e.Variant(1)
	e.Len(len(r.Entries))
	for _, it := range r.Entries {
		e.String(it.ID)
		e.ByteBuf(it.Data)
	}
}

func (StoreDeleted) MarshalWire(e *Encoder) { e.Variant(2) }

func ReadStoreResponse(d *Decoder) StoreResponse {
	switch tag := d.Variant(); tag {
	case 0:
		return StoreSaved{}
	case 1:
		n := d.Len()
		var entries []StoreItem
		if n > 0 {
			entries = make([]StoreItem, 0, n)
		}
		for i := 0; i < n && d.Err() == nil; i++ {
			entries = append(entries, StoreItem{ID: d.String(), Data: d.ByteBuf()})
		}
		return StoreListed{Entries: entries}
	case 2:
		return StoreDeleted{}
	default:
		d.Unknown("StoreResponse", tag)
		return nil
	}
}

// StoreError is a backend failure reported to the core. It travels as its
// message string.
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string { return "store: " + e.Message }

// StoreResult is Ok(Response) when Err is nil, otherwise Err(Err).
type StoreResult struct {
	Response StoreResponse
	Err      *StoreError
}

func StoreOk(r StoreResponse) StoreResult { return StoreResult{Response: r} }

func StoreFailed(err error) StoreResult {
	return StoreResult{Err: &StoreError{Message: err.Error()}}
}

func (r StoreResult) MarshalWire(e *Encoder) {
	if r.Err != nil {
		e.Variant(1)
		e.String(r.Err.Message)
		return
	}
	e.Variant(0)
	r.Response.MarshalWire(e)
}

func DecodeStoreResult(b []byte) (StoreResult, error) {
	return decode(b, ReadStoreResult)
}

func ReadStoreResult(d *Decoder) StoreResult {
	switch tag := d.Variant(); tag {
	case 0:
		return StoreResult{Response: ReadStoreResponse(d)}
	case 1:
		return StoreResult{Err: &StoreError{Message: d.String()}}
	default:
		d.Unknown("StoreResult", tag)
		return StoreResult{}
	}
}
