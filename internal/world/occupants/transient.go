package occupants

// Transient обитатель, который не попадает в сохранение (лужи, крона)
type Transient struct {
	name string
}

func (t *Transient) Name() string { return t.name }

func (t *Transient) ShouldBeSaved() bool { return false }
