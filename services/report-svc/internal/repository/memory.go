// services/report-svc/internal/repository/memory.go
package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"farmreport/pkg/textnorm"
	"farmreport/services/report-svc/internal/domain"
)

// Fixtures плоские таблицы для MemoryStore (yaml)
type Fixtures struct {
	Producers       []ProducerFixture `yaml:"producers"`
	Properties      []PropertyFixture `yaml:"properties"`
	ProductionUnits []UnitFixture     `yaml:"production_units"`
	Herds           []HerdFixture     `yaml:"herds"`
}

type ProducerFixture struct {
	ID           int64     `yaml:"id"`
	Name         string    `yaml:"name"`
	Document     string    `yaml:"document"`
	Phone        string    `yaml:"phone"`
	Email        string    `yaml:"email"`
	Municipality string    `yaml:"municipality"`
	State        string    `yaml:"state"`
	CreatedAt    time.Time `yaml:"created_at"`
}

type PropertyFixture struct {
	ID           int64     `yaml:"id"`
	Name         string    `yaml:"name"`
	Municipality string    `yaml:"municipality"`
	State        string    `yaml:"state"`
	TotalArea    float64   `yaml:"total_area"`
	ProducerID   int64     `yaml:"producer_id"`
	CreatedAt    time.Time `yaml:"created_at"`
}

type UnitFixture struct {
	ID         int64     `yaml:"id"`
	Name       string    `yaml:"name"`
	CropType   string    `yaml:"crop_type"`
	Area       float64   `yaml:"area"`
	PropertyID int64     `yaml:"property_id"`
	CreatedAt  time.Time `yaml:"created_at"`
}

type HerdFixture struct {
	ID         int64     `yaml:"id"`
	Species    string    `yaml:"species"`
	Quantity   int64     `yaml:"quantity"`
	Purpose    string    `yaml:"purpose"`
	PropertyID int64     `yaml:"property_id"`
	UpdatedAt  time.Time `yaml:"updated_at"`
}

// LoadFixtures читает yaml
func LoadFixtures(r io.Reader) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode fixtures: %w", err)
	}
	return &f, nil
}

// LoadFixtureFile читает yaml из файла
func LoadFixtureFile(path string) (*Fixtures, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixtures: %w", err)
	}
	defer file.Close()
	return LoadFixtures(file)
}

// MemoryStore хранилище в памяти для разработки и тестов.
// Считает вызовы каждого метода.
type MemoryStore struct {
	mu     sync.RWMutex
	data   Fixtures
	calls  map[string]int
	err    error
	closed bool
}

// NewMemoryStore создаёт хранилище; nil даёт пустое
func NewMemoryStore(f *Fixtures) *MemoryStore {
	s := &MemoryStore{calls: make(map[string]int)}
	if f != nil {
		s.data = *f
	}
	return s
}

// Calls число вызовов метода
func (s *MemoryStore) Calls(method string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[method]
}

// TotalCalls число вызовов всех методов чтения
func (s *MemoryStore) TotalCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// FailWith заставляет все чтения возвращать err; nil снимает сбой
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *MemoryStore) enter(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[method]++
	if s.closed {
		return ErrClosed
	}
	return s.err
}

func (s *MemoryStore) producer(id int64) *ProducerFixture {
	for i := range s.data.Producers {
		if s.data.Producers[i].ID == id {
			return &s.data.Producers[i]
		}
	}
	return nil
}

func (s *MemoryStore) property(id int64) *PropertyFixture {
	for i := range s.data.Properties {
		if s.data.Properties[i].ID == id {
			return &s.data.Properties[i]
		}
	}
	return nil
}

func (s *MemoryStore) propertyRef(id int64) *domain.PropertyRef {
	p := s.property(id)
	if p == nil {
		return nil
	}
	return &domain.PropertyRef{ID: p.ID, Name: p.Name, Municipality: p.Municipality, State: p.State}
}

func (s *MemoryStore) buildProperty(pf PropertyFixture) domain.Property {
	p := domain.Property{
		ID:              pf.ID,
		Name:            pf.Name,
		Municipality:    pf.Municipality,
		State:           pf.State,
		TotalArea:       pf.TotalArea,
		CreatedAt:       pf.CreatedAt.UTC(),
		ProductionUnits: []domain.UnitRef{},
		Herds:           []domain.HerdRef{},
	}
	if pr := s.producer(pf.ProducerID); pr != nil {
		p.Producer = &domain.ProducerRef{ID: pr.ID, Name: pr.Name, Document: pr.Document}
	}
	for _, u := range s.data.ProductionUnits {
		if u.PropertyID == pf.ID {
			p.ProductionUnits = append(p.ProductionUnits, domain.UnitRef{ID: u.ID, Name: u.Name, CropType: u.CropType, Area: u.Area})
		}
	}
	sort.SliceStable(p.ProductionUnits, func(i, j int) bool { return p.ProductionUnits[i].Name < p.ProductionUnits[j].Name })
	for _, h := range s.data.Herds {
		if h.PropertyID == pf.ID {
			p.Herds = append(p.Herds, domain.HerdRef{ID: h.ID, Species: h.Species, Quantity: h.Quantity})
		}
	}
	sort.SliceStable(p.Herds, func(i, j int) bool { return p.Herds[i].Species < p.Herds[j].Species })
	return p
}

func (s *MemoryStore) allProperties(q Query) []domain.Property {
	var out []domain.Property
	for _, pf := range s.data.Properties {
		p := s.buildProperty(pf)
		producerName, producerDoc := "", ""
		if p.Producer != nil {
			producerName, producerDoc = p.Producer.Name, p.Producer.Document
		}
		if !matchesSearch(q.Search, p.Name, p.Municipality, producerName, producerDoc) ||
			!inRange(p.CreatedAt, q) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return lessByName(out[i].Name, out[j].Name, out[i].ID, out[j].ID) })
	return out
}

// Properties возвращает хозяйства
func (s *MemoryStore) Properties(_ context.Context, q Query) ([]domain.Property, error) {
	if err := s.enter("Properties"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return truncate(s.allProperties(q), q.EffectiveLimit()), nil
}

func (s *MemoryStore) allHerds(q Query) []domain.Herd {
	var out []domain.Herd
	for _, hf := range s.data.Herds {
		h := domain.Herd{
			ID:        hf.ID,
			Species:   hf.Species,
			Quantity:  hf.Quantity,
			Purpose:   hf.Purpose,
			UpdatedAt: hf.UpdatedAt.UTC(),
			Property:  s.propertyRef(hf.PropertyID),
		}
		propName, municipality := "", ""
		if h.Property != nil {
			propName, municipality = h.Property.Name, h.Property.Municipality
		}
		if !matchesSearch(q.Search, h.Species, propName, municipality) || !inRange(h.UpdatedAt, q) {
			continue
		}
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := "", ""
		if out[i].Property != nil {
			pi = out[i].Property.Name
		}
		if out[j].Property != nil {
			pj = out[j].Property.Name
		}
		if pi != pj {
			return pi < pj
		}
		return lessByName(out[i].Species, out[j].Species, out[i].ID, out[j].ID)
	})
	return out
}

// Herds возвращает стада
func (s *MemoryStore) Herds(_ context.Context, q Query) ([]domain.Herd, error) {
	if err := s.enter("Herds"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return truncate(s.allHerds(q), q.EffectiveLimit()), nil
}

// Producers возвращает производителей
func (s *MemoryStore) Producers(_ context.Context, q Query) ([]domain.Producer, error) {
	if err := s.enter("Producers"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Producer
	for _, pf := range s.data.Producers {
		if !matchesSearch(q.Search, pf.Name, pf.Document, pf.Municipality, pf.Email) || !inRange(pf.CreatedAt, q) {
			continue
		}
		var count int64
		for _, prop := range s.data.Properties {
			if prop.ProducerID == pf.ID {
				count++
			}
		}
		out = append(out, domain.Producer{
			ID:              pf.ID,
			Name:            pf.Name,
			Document:        pf.Document,
			Phone:           pf.Phone,
			Email:           pf.Email,
			Municipality:    pf.Municipality,
			State:           pf.State,
			PropertiesCount: count,
			CreatedAt:       pf.CreatedAt.UTC(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return lessByName(out[i].Name, out[j].Name, out[i].ID, out[j].ID) })

	return truncate(out, q.EffectiveLimit()), nil
}

func (s *MemoryStore) allUnits(q Query) []domain.ProductionUnit {
	var out []domain.ProductionUnit
	for _, uf := range s.data.ProductionUnits {
		u := domain.ProductionUnit{
			ID:        uf.ID,
			Name:      uf.Name,
			CropType:  uf.CropType,
			Area:      uf.Area,
			CreatedAt: uf.CreatedAt.UTC(),
			Property:  s.propertyRef(uf.PropertyID),
		}
		propName, municipality := "", ""
		if u.Property != nil {
			propName, municipality = u.Property.Name, u.Property.Municipality
		}
		if !matchesSearch(q.Search, u.Name, u.CropType, propName, municipality) || !inRange(u.CreatedAt, q) {
			continue
		}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool { return lessByName(out[i].Name, out[j].Name, out[i].ID, out[j].ID) })
	return out
}

// ProductionUnits возвращает производственные единицы
func (s *MemoryStore) ProductionUnits(_ context.Context, q Query) ([]domain.ProductionUnit, error) {
	if err := s.enter("ProductionUnits"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return truncate(s.allUnits(q), q.EffectiveLimit()), nil
}

// groupAcc накапливает группу; участники собираются без повторов
type groupAcc struct {
	group   domain.Group
	members map[string]struct{}
}

func (a *groupAcc) add(count, quantity int64, area float64, member string) {
	a.group.Count += count
	a.group.Quantity += quantity
	a.group.Area += area
	if member != "" {
		a.members[member] = struct{}{}
	}
}

func collectGroups(accs map[string]*groupAcc, limit int) []domain.Group {
	keys := make([]string, 0, len(accs))
	for k := range accs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.Group, 0, len(keys))
	for _, k := range keys {
		a := accs[k]
		a.group.Members = make([]string, 0, len(a.members))
		for m := range a.members {
			a.group.Members = append(a.group.Members, m)
		}
		sort.Strings(a.group.Members)
		out = append(out, a.group)
	}
	return truncate(out, limit)
}

func accumulator(accs map[string]*groupAcc, key, secondary string) *groupAcc {
	a, ok := accs[key]
	if !ok {
		a = &groupAcc{group: domain.Group{Key: key, Secondary: secondary}, members: make(map[string]struct{})}
		accs[key] = a
	}
	return a
}

// HerdsBySpecies группирует стада по виду
func (s *MemoryStore) HerdsBySpecies(_ context.Context, q Query) ([]domain.Group, error) {
	if err := s.enter("HerdsBySpecies"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	accs := make(map[string]*groupAcc)
	for _, h := range s.allHerds(q) {
		member := ""
		if h.Property != nil {
			member = h.Property.Name
		}
		accumulator(accs, h.Species, "").add(1, h.Quantity, 0, member)
	}
	return collectGroups(accs, q.EffectiveLimit()), nil
}

// PropertiesByMunicipality группирует хозяйства по муниципалитету
func (s *MemoryStore) PropertiesByMunicipality(_ context.Context, q Query) ([]domain.Group, error) {
	if err := s.enter("PropertiesByMunicipality"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	accs := make(map[string]*groupAcc)
	for _, p := range s.allProperties(q) {
		member := ""
		if p.Producer != nil {
			member = p.Producer.Name
		}
		accumulator(accs, p.Municipality, p.State).add(1, 0, p.TotalArea, member)
	}
	return collectGroups(accs, q.EffectiveLimit()), nil
}

// UnitsByProperty группирует единицы по хозяйству
func (s *MemoryStore) UnitsByProperty(_ context.Context, q Query) ([]domain.Group, error) {
	if err := s.enter("UnitsByProperty"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	accs := make(map[string]*groupAcc)
	for _, u := range s.allUnits(q) {
		key, secondary := "", ""
		if u.Property != nil {
			key, secondary = u.Property.Name, u.Property.Municipality
		}
		accumulator(accs, key, secondary).add(1, 0, u.Area, u.CropType)
	}
	return collectGroups(accs, q.EffectiveLimit()), nil
}

// Dashboard считает сводные показатели
func (s *MemoryStore) Dashboard(_ context.Context) (*domain.Dashboard, error) {
	if err := s.enter("Dashboard"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := &domain.Dashboard{
		Producers:       int64(len(s.data.Producers)),
		Properties:      int64(len(s.data.Properties)),
		ProductionUnits: int64(len(s.data.ProductionUnits)),
		Herds:           int64(len(s.data.Herds)),
		Species:         []domain.SpeciesCount{},
	}
	for _, p := range s.data.Properties {
		d.TotalArea += p.TotalArea
	}
	for _, u := range s.data.ProductionUnits {
		d.CultivatedArea += u.Area
	}

	bySpecies := make(map[string]*domain.SpeciesCount)
	for _, h := range s.data.Herds {
		d.TotalAnimals += h.Quantity
		sc, ok := bySpecies[h.Species]
		if !ok {
			sc = &domain.SpeciesCount{Species: h.Species}
			bySpecies[h.Species] = sc
		}
		sc.Herds++
		sc.Animals += h.Quantity
	}
	for _, sc := range bySpecies {
		d.Species = append(d.Species, *sc)
	}
	sort.Slice(d.Species, func(i, j int) bool { return d.Species[i].Species < d.Species[j].Species })

	return d, nil
}

// Municipalities возвращает различные муниципалитеты
func (s *MemoryStore) Municipalities(_ context.Context) ([]string, error) {
	if err := s.enter("Municipalities"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return distinctValues(s.data.Properties, func(p PropertyFixture) string { return p.Municipality }), nil
}

// States возвращает различные штаты
func (s *MemoryStore) States(_ context.Context) ([]string, error) {
	if err := s.enter("States"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return distinctValues(s.data.Properties, func(p PropertyFixture) string { return p.State }), nil
}

// Ping проверяет доступность
func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.err
}

// Close закрывает хранилище
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func matchesSearch(term string, fields ...string) bool {
	if strings.TrimSpace(term) == "" {
		return true
	}
	for _, f := range fields {
		if textnorm.Contains(f, term) {
			return true
		}
	}
	return false
}

func inRange(t time.Time, q Query) bool {
	if q.DateFrom != nil && t.Before(*q.DateFrom) {
		return false
	}
	if q.DateTo != nil && !t.Before(q.DateTo.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

func lessByName(a, b string, idA, idB int64) bool {
	if a != b {
		return a < b
	}
	return idA < idB
}

func truncate[T any](items []T, limit int) []T {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

func distinctValues[T any](items []T, field func(T) string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, item := range items {
		v := strings.TrimSpace(field(item))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
