package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"contract-tracker/backend/internal/model"
	"contract-tracker/backend/internal/repository"
	pkgerrors "contract-tracker/backend/pkg/errors"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users  map[int64]*model.User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*model.User), nextID: 1}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if user.UserID == 0 {
		user.UserID = m.nextID
		m.nextID++
	}
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	if _, ok := m.users[user.UserID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id int64) error {
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) List(_ context.Context, filter repository.UserFilter, offset, limit int) ([]model.User, int64, error) {
	var all []model.User
	for _, u := range m.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Keyword != "" && !strings.Contains(u.Name, filter.Keyword) && !strings.Contains(u.Email, filter.Keyword) {
			continue
		}
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })
	return page(all, offset, limit), int64(len(all)), nil
}

// ── Mock ProjectRepository ──

type mockProjectRepo struct {
	users     *mockUserRepo
	projects  map[int64]*model.Project
	members   map[int64]map[int64]time.Time
	favorites map[int64]map[int64]bool // key: user_id
	nextID    int64
}

func newMockProjectRepo(users *mockUserRepo) *mockProjectRepo {
	return &mockProjectRepo{
		users:     users,
		projects:  make(map[int64]*model.Project),
		members:   make(map[int64]map[int64]time.Time),
		favorites: make(map[int64]map[int64]bool),
		nextID:    1,
	}
}

func (m *mockProjectRepo) Create(_ context.Context, project *model.Project) error {
	if project.ProjectID == 0 {
		project.ProjectID = m.nextID
		m.nextID++
	}
	if project.Version == 0 {
		project.Version = 1
	}
	cp := *project
	m.projects[project.ProjectID] = &cp
	return nil
}

func (m *mockProjectRepo) GetByID(_ context.Context, id int64) (*model.Project, error) {
	if p, ok := m.projects[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockProjectRepo) Update(_ context.Context, project *model.Project) error {
	stored, ok := m.projects[project.ProjectID]
	if !ok || stored.Version != project.Version {
		return pkgerrors.ErrOptimisticLock
	}
	project.Version++
	cp := *project
	m.projects[project.ProjectID] = &cp
	return nil
}

func (m *mockProjectRepo) Delete(_ context.Context, id int64) error {
	delete(m.projects, id)
	delete(m.members, id)
	return nil
}

func (m *mockProjectRepo) ListView(_ context.Context, filter repository.ProjectFilter, offset, limit int) ([]model.ViewProject, int64, error) {
	var all []model.ViewProject
	for _, p := range m.projects {
		if filter.Status != "" && p.ProjectStatus != filter.Status {
			continue
		}
		if filter.Keyword != "" && !strings.Contains(p.ProjectName, filter.Keyword) {
			continue
		}
		if filter.FavoritesOf != 0 && !m.favorites[filter.FavoritesOf][p.ProjectID] {
			continue
		}
		all = append(all, model.ViewProject{
			ProjectID:     p.ProjectID,
			ProjectName:   p.ProjectName,
			ProjectType:   p.ProjectType,
			ProjectStatus: p.ProjectStatus,
			ApprovedTotal: decimal.Zero,
		})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ProjectID < all[j].ProjectID })
	return page(all, offset, limit), int64(len(all)), nil
}

func (m *mockProjectRepo) GetView(_ context.Context, id int64) (*model.ViewProject, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.ViewProject{ProjectID: p.ProjectID, ProjectName: p.ProjectName}, nil
}

func (m *mockProjectRepo) AddMember(_ context.Context, projectID, userID int64) (bool, error) {
	if m.members[projectID] == nil {
		m.members[projectID] = make(map[int64]time.Time)
	}
	if _, ok := m.members[projectID][userID]; ok {
		return false, nil
	}
	m.members[projectID][userID] = time.Now()
	return true, nil
}

func (m *mockProjectRepo) RemoveMember(_ context.Context, projectID, userID int64) error {
	delete(m.members[projectID], userID)
	return nil
}

func (m *mockProjectRepo) ListMembers(_ context.Context, projectID int64) ([]model.UserProjectLink, error) {
	var links []model.UserProjectLink
	for userID, at := range m.members[projectID] {
		link := model.UserProjectLink{UserID: userID, ProjectID: projectID, CreatedAt: at}
		if u, ok := m.users.users[userID]; ok {
			cp := *u
			link.User = &cp
		}
		links = append(links, link)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].UserID < links[j].UserID })
	return links, nil
}

func (m *mockProjectRepo) AddFavorite(_ context.Context, projectID, userID int64) error {
	if m.favorites[userID] == nil {
		m.favorites[userID] = make(map[int64]bool)
	}
	m.favorites[userID][projectID] = true
	return nil
}

func (m *mockProjectRepo) RemoveFavorite(_ context.Context, projectID, userID int64) error {
	delete(m.favorites[userID], projectID)
	return nil
}

func (m *mockProjectRepo) IsFavorite(_ context.Context, projectID, userID int64) (bool, error) {
	return m.favorites[userID][projectID], nil
}

func (m *mockProjectRepo) FavoriteProjectIDs(_ context.Context, userID int64) ([]int64, error) {
	var ids []int64
	for id := range m.favorites[userID] {
		ids = append(ids, id)
	}
	return ids, nil
}

// ── Mock DependencyRepository ──

type mockDependencyRepo struct {
	edges map[model.MilestoneDependency]bool

	deleteBySuccessorCalls int
	batchCreateCalls       int
}

func newMockDependencyRepo() *mockDependencyRepo {
	return &mockDependencyRepo{edges: make(map[model.MilestoneDependency]bool)}
}

func edgeKey(e model.MilestoneDependency) model.MilestoneDependency {
	e.CreatedAt = time.Time{}
	return e
}

func (m *mockDependencyRepo) Create(_ context.Context, edge *model.MilestoneDependency) (bool, error) {
	k := edgeKey(*edge)
	if m.edges[k] {
		return false, nil
	}
	m.edges[k] = true
	return true, nil
}

func (m *mockDependencyRepo) BatchCreate(_ context.Context, edges []model.MilestoneDependency) error {
	m.batchCreateCalls++
	for _, e := range edges {
		m.edges[edgeKey(e)] = true
	}
	return nil
}

func (m *mockDependencyRepo) Delete(_ context.Context, edge *model.MilestoneDependency) (int64, error) {
	k := edgeKey(*edge)
	if !m.edges[k] {
		return 0, nil
	}
	delete(m.edges, k)
	return 1, nil
}

func (m *mockDependencyRepo) DeleteBySuccessor(_ context.Context, successorMilestoneID int64) error {
	m.deleteBySuccessorCalls++
	for k := range m.edges {
		if k.SuccessorMilestoneID == successorMilestoneID {
			delete(m.edges, k)
		}
	}
	return nil
}

func (m *mockDependencyRepo) DeleteByMilestone(_ context.Context, milestoneID int64) error {
	for k := range m.edges {
		if k.SuccessorMilestoneID == milestoneID || k.PredecessorMilestoneID == milestoneID {
			delete(m.edges, k)
		}
	}
	return nil
}

func (m *mockDependencyRepo) ListPredecessors(_ context.Context, milestoneID int64) ([]model.DependencyView, error) {
	var rows []model.DependencyView
	for k := range m.edges {
		if k.SuccessorMilestoneID == milestoneID {
			rows = append(rows, toViewRow(k))
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PredecessorMilestoneID < rows[j].PredecessorMilestoneID })
	return rows, nil
}

func (m *mockDependencyRepo) ListSuccessors(_ context.Context, milestoneID int64) ([]model.DependencyView, error) {
	var rows []model.DependencyView
	for k := range m.edges {
		if k.PredecessorMilestoneID == milestoneID {
			rows = append(rows, toViewRow(k))
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SuccessorMilestoneID < rows[j].SuccessorMilestoneID })
	return rows, nil
}

func (m *mockDependencyRepo) predecessorsOf(milestoneID int64) model.Int64Array {
	ids := model.Int64Array{}
	for k := range m.edges {
		if k.SuccessorMilestoneID == milestoneID {
			ids = append(ids, k.PredecessorMilestoneID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func toViewRow(k model.MilestoneDependency) model.DependencyView {
	return model.DependencyView{
		PredecessorProjectID:   k.PredecessorProjectID,
		PredecessorMilestoneID: k.PredecessorMilestoneID,
		SuccessorProjectID:     k.SuccessorProjectID,
		SuccessorMilestoneID:   k.SuccessorMilestoneID,
	}
}

// ── Mock MilestoneRepository ──

type mockMilestoneRepo struct {
	deps       *mockDependencyRepo
	milestones map[int64]*model.Milestone
	nextID     int64

	updateCalls int
}

func newMockMilestoneRepo(deps *mockDependencyRepo) *mockMilestoneRepo {
	return &mockMilestoneRepo{deps: deps, milestones: make(map[int64]*model.Milestone), nextID: 1}
}

func (m *mockMilestoneRepo) GetByID(_ context.Context, id int64) (*model.Milestone, error) {
	ms, ok := m.milestones[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *ms
	cp.Predecessors = m.deps.predecessorsOf(id)
	return &cp, nil
}

func (m *mockMilestoneRepo) ListByProject(_ context.Context, projectID int64) ([]model.Milestone, error) {
	var result []model.Milestone
	for _, ms := range m.milestones {
		if ms.ProjectID != projectID {
			continue
		}
		cp := *ms
		cp.Predecessors = m.deps.predecessorsOf(ms.MilestoneID)
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].MilestoneID < result[j].MilestoneID })
	return result, nil
}

func (m *mockMilestoneRepo) BatchCreate(_ context.Context, milestones []model.Milestone) error {
	for i := range milestones {
		milestones[i].MilestoneID = m.nextID
		m.nextID++
		cp := milestones[i]
		m.milestones[cp.MilestoneID] = &cp
	}
	return nil
}

func (m *mockMilestoneRepo) Update(_ context.Context, milestone *model.Milestone) error {
	m.updateCalls++
	if _, ok := m.milestones[milestone.MilestoneID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *milestone
	m.milestones[milestone.MilestoneID] = &cp
	return nil
}

func (m *mockMilestoneRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.milestones[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.milestones, id)
	return nil
}

func (m *mockMilestoneRepo) ResolveProjects(_ context.Context, ids []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(ids))
	for _, id := range ids {
		if ms, ok := m.milestones[id]; ok {
			result[id] = ms.ProjectID
		}
	}
	return result, nil
}

// ── Mock FundingRepository ──

type fundingKey struct {
	projectID int64
	year      int
	typeID    int
}

type mockFundingRepo struct {
	mu    sync.Mutex // GetMatrix 并发读取
	cells map[fundingKey]decimal.Decimal
	types map[int]string

	updateCalls int
}

func newMockFundingRepo() *mockFundingRepo {
	return &mockFundingRepo{
		cells: make(map[fundingKey]decimal.Decimal),
		types: map[int]string{1: "RDT&E", 2: "Procurement", 3: "O&M"},
	}
}

func (m *mockFundingRepo) ListByProject(_ context.Context, projectID int64) ([]model.ApprovedFunding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []model.ApprovedFunding
	for k, v := range m.cells {
		if k.projectID == projectID {
			result = append(result, model.ApprovedFunding{
				ProjectID:      k.projectID,
				FiscalYear:     k.year,
				FundingTypeID:  k.typeID,
				ApprovedAmount: v,
			})
		}
	}
	return result, nil
}

func (m *mockFundingRepo) ActiveFiscalYears(_ context.Context, projectID int64) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.distinct(projectID, func(k fundingKey) int { return k.year }), nil
}

func (m *mockFundingRepo) ActiveFundingTypes(_ context.Context, projectID int64) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.distinct(projectID, func(k fundingKey) int { return k.typeID }), nil
}

func (m *mockFundingRepo) BatchCreate(_ context.Context, cells []model.ApprovedFunding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range cells {
		k := fundingKey{projectID: c.ProjectID, year: c.FiscalYear, typeID: c.FundingTypeID}
		if _, ok := m.cells[k]; ok {
			return gorm.ErrDuplicatedKey
		}
		m.cells[k] = c.ApprovedAmount
	}
	return nil
}

func (m *mockFundingRepo) UpdateAmount(_ context.Context, projectID int64, fiscalYear, fundingTypeID int, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateCalls++
	k := fundingKey{projectID: projectID, year: fiscalYear, typeID: fundingTypeID}
	if _, ok := m.cells[k]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.cells[k] = amount
	return nil
}

func (m *mockFundingRepo) DeleteByFiscalYear(_ context.Context, projectID int64, fiscalYear int) (int64, error) {
	return m.deleteWhere(func(k fundingKey) bool { return k.projectID == projectID && k.year == fiscalYear }), nil
}

func (m *mockFundingRepo) DeleteByFundingType(_ context.Context, projectID int64, fundingTypeID int) (int64, error) {
	return m.deleteWhere(func(k fundingKey) bool { return k.projectID == projectID && k.typeID == fundingTypeID }), nil
}

func (m *mockFundingRepo) ListFundingTypes(_ context.Context) ([]model.FundingType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]model.FundingType, 0, len(m.types))
	for id, name := range m.types {
		result = append(result, model.FundingType{FundingTypeID: id, FundingType: name})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FundingTypeID < result[j].FundingTypeID })
	return result, nil
}

func (m *mockFundingRepo) GetFundingType(_ context.Context, id int) (*model.FundingType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name, ok := m.types[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.FundingType{FundingTypeID: id, FundingType: name}, nil
}

func (m *mockFundingRepo) distinct(projectID int64, pick func(fundingKey) int) []int {
	seen := make(map[int]bool)
	var result []int
	for k := range m.cells {
		if k.projectID != projectID || seen[pick(k)] {
			continue
		}
		seen[pick(k)] = true
		result = append(result, pick(k))
	}
	sort.Ints(result)
	return result
}

func (m *mockFundingRepo) deleteWhere(match func(fundingKey) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for k := range m.cells {
		if match(k) {
			delete(m.cells, k)
			n++
		}
	}
	return n
}

// ── Mock ContractRepository ──

type mockContractRepo struct {
	contracts map[int64]*model.ContractAward
	nextID    int64
}

func newMockContractRepo() *mockContractRepo {
	return &mockContractRepo{contracts: make(map[int64]*model.ContractAward), nextID: 1}
}

func (m *mockContractRepo) Create(_ context.Context, contract *model.ContractAward) error {
	if contract.ContractID == 0 {
		contract.ContractID = m.nextID
		m.nextID++
	}
	cp := *contract
	m.contracts[contract.ContractID] = &cp
	return nil
}

func (m *mockContractRepo) GetByID(_ context.Context, id int64) (*model.ContractAward, error) {
	if c, ok := m.contracts[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockContractRepo) ListByProject(_ context.Context, projectID int64) ([]model.ContractAward, error) {
	var result []model.ContractAward
	for _, c := range m.contracts {
		if c.ProjectID == projectID {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ContractID < result[j].ContractID })
	return result, nil
}

func (m *mockContractRepo) Update(_ context.Context, contract *model.ContractAward) error {
	stored, ok := m.contracts[contract.ContractID]
	if !ok || stored.Version != contract.Version {
		return pkgerrors.ErrOptimisticLock
	}
	contract.Version++
	cp := *contract
	m.contracts[contract.ContractID] = &cp
	return nil
}

func (m *mockContractRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.contracts[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.contracts, id)
	return nil
}

// ── Mock HistoryRepository ──

type mockHistoryRepo struct {
	entries []model.ProjectHistory
	nextID  int64
}

func newMockHistoryRepo() *mockHistoryRepo {
	return &mockHistoryRepo{nextID: 1}
}

func (m *mockHistoryRepo) Create(_ context.Context, entry *model.ProjectHistory) error {
	entry.HistoryID = m.nextID
	m.nextID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockHistoryRepo) List(_ context.Context, projectID int64, cursor *int64, limit int) ([]model.ProjectHistory, error) {
	var result []model.ProjectHistory
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.ProjectID != projectID {
			continue
		}
		if cursor != nil && e.HistoryID >= *cursor {
			continue
		}
		result = append(result, e)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (m *mockHistoryRepo) count(entity, action string) int {
	n := 0
	for _, e := range m.entries {
		if e.Entity == entity && e.Action == action {
			n++
		}
	}
	return n
}

// ── Mock Notifier ──

type sentNotification struct {
	event      string
	recipients []string
	subject    string
	body       string
}

type mockNotifier struct {
	sent []sentNotification
}

func (n *mockNotifier) Notify(_ context.Context, event string, recipients []string, subject, body string) {
	n.sent = append(n.sent, sentNotification{event: event, recipients: recipients, subject: subject, body: body})
}

// ── Mock TokenBlacklist ──

type mockBlacklist struct {
	tokens map[string]time.Duration
}

func newMockBlacklist() *mockBlacklist {
	return &mockBlacklist{tokens: make(map[string]time.Duration)}
}

func (b *mockBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	b.tokens[jti] = ttl
	return nil
}

// ── 测试聚合 ──

type testRepos struct {
	user       *mockUserRepo
	project    *mockProjectRepo
	milestone  *mockMilestoneRepo
	dependency *mockDependencyRepo
	funding    *mockFundingRepo
	contract   *mockContractRepo
	history    *mockHistoryRepo
}

// newTestRepo 未绑定数据库的聚合，runInTx 直接在其上执行
func newTestRepo() (*repository.Repository, *testRepos) {
	users := newMockUserRepo()
	deps := newMockDependencyRepo()
	m := &testRepos{
		user:       users,
		project:    newMockProjectRepo(users),
		milestone:  newMockMilestoneRepo(deps),
		dependency: deps,
		funding:    newMockFundingRepo(),
		contract:   newMockContractRepo(),
		history:    newMockHistoryRepo(),
	}
	repo := &repository.Repository{
		User:       m.user,
		Project:    m.project,
		Milestone:  m.milestone,
		Dependency: m.dependency,
		Funding:    m.funding,
		Contract:   m.contract,
		History:    m.history,
	}
	return repo, m
}

// seedProject 写入一个项目并返回其 ID
func (m *testRepos) seedProject(name string) int64 {
	p := &model.Project{ProjectName: name, ProjectType: "PROJECT", ProjectStatus: model.StatusPreAward}
	_ = m.project.Create(context.Background(), p)
	return p.ProjectID
}

// seedMilestone 写入一个里程碑并返回其 ID
func (m *testRepos) seedMilestone(projectID int64, name string, start time.Time) int64 {
	ms := []model.Milestone{{
		ProjectID:      projectID,
		TaskName:       name,
		ProjectedStart: start,
		ProjectedEnd:   start.AddDate(0, 0, 7),
	}}
	_ = m.milestone.BatchCreate(context.Background(), ms)
	return ms[0].MilestoneID
}

// link 直接写入一条同项目依赖边
func (m *testRepos) link(projectID, pred, succ int64) {
	m.dependency.edges[model.MilestoneDependency{
		PredecessorProjectID:   projectID,
		PredecessorMilestoneID: pred,
		SuccessorProjectID:     projectID,
		SuccessorMilestoneID:   succ,
	}] = true
}

func page[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
