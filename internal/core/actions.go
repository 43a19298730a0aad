package core

import (
	"context"

	"herdbook/internal/gateway"
	"herdbook/internal/lifecycle"
	"herdbook/pkg/domain"
)

// Filters narrows remote fetches. Offline reads serve the whole cached slice.
type Filters = gateway.Filters

// FetchBreedings loads breedings into the coordinator, from the remote store
// when reachable and from a fresh cache entry otherwise.
func (s *Service) FetchBreedings(ctx context.Context, f Filters) ([]domain.Breeding, error) {
	return read(ctx, s, "fetch_breedings", domain.CollectionBreedings,
		func(ctx context.Context) ([]domain.Breeding, error) { return s.gateway.FetchBreedings(ctx, f) },
		(*lifecycle.Coordinator).ReplaceBreedings)
}

// CreateBreeding persists a new breeding. Status always starts pending.
func (s *Service) CreateBreeding(ctx context.Context, b domain.Breeding) (domain.Breeding, domain.Result, error) {
	b.Status = domain.BreedingPending
	return write(ctx, s, "create_breeding", domain.CollectionBreedings, "",
		func(ctx context.Context) (domain.Breeding, error) { return s.gateway.CreateBreeding(ctx, b) },
		(*lifecycle.Coordinator).AddBreeding)
}

// UpdateBreeding writes the named fields of b (all when none are named) and
// replaces the in-memory record with the stored one.
func (s *Service) UpdateBreeding(ctx context.Context, id string, b domain.Breeding, fields ...string) (domain.Breeding, domain.Result, error) {
	return write(ctx, s, "update_breeding", domain.CollectionBreedings, id,
		func(ctx context.Context) (domain.Breeding, error) {
			return s.gateway.UpdateBreeding(ctx, id, b, fields...)
		},
		(*lifecycle.Coordinator).UpdateBreeding)
}

// DeleteBreeding removes a breeding. Linked pregnancies are left untouched.
func (s *Service) DeleteBreeding(ctx context.Context, id string) (domain.Result, error) {
	_, res, err := write(ctx, s, "delete_breeding", domain.CollectionBreedings, id,
		func(ctx context.Context) (string, error) { return id, s.gateway.DeleteBreeding(ctx, id) },
		(*lifecycle.Coordinator).DeleteBreeding)
	return res, err
}

// FetchPregnancies loads pregnancies into the coordinator.
func (s *Service) FetchPregnancies(ctx context.Context, f Filters) ([]domain.Pregnancy, error) {
	return read(ctx, s, "fetch_pregnancies", domain.CollectionPregnancies,
		func(ctx context.Context) ([]domain.Pregnancy, error) { return s.gateway.FetchPregnancies(ctx, f) },
		(*lifecycle.Coordinator).ReplacePregnancies)
}

// CreatePregnancy persists a new pregnancy and confirms its breeding.
func (s *Service) CreatePregnancy(ctx context.Context, p domain.Pregnancy) (domain.Pregnancy, domain.Result, error) {
	p = s.pregnancyDefaults(p)
	return write(ctx, s, "create_pregnancy", domain.CollectionPregnancies, "",
		func(ctx context.Context) (domain.Pregnancy, error) { return s.gateway.CreatePregnancy(ctx, p) },
		(*lifecycle.Coordinator).AddPregnancy)
}

// pregnancyDefaults forces the confirmed status and fills gestation and due date.
func (s *Service) pregnancyDefaults(p domain.Pregnancy) domain.Pregnancy {
	p.Status = domain.PregnancyConfirmed
	if p.GestationPeriod <= 0 {
		p.GestationPeriod = domain.DefaultGestationPeriod
	}
	if p.ExpectedDueDate.IsZero() {
		from := p.ConfirmationDate
		if b, ok := s.state.Breeding(p.BreedingID); ok && !b.BreedingDate.IsZero() {
			from = b.BreedingDate
		}
		if !from.IsZero() {
			p.ExpectedDueDate = domain.ExpectedDueDate(from, p.GestationPeriod)
		}
	}
	if p.Checks == nil {
		p.Checks = []domain.PregnancyCheck{}
	}
	return p
}

// UpdatePregnancy writes the named fields of p.
func (s *Service) UpdatePregnancy(ctx context.Context, id string, p domain.Pregnancy, fields ...string) (domain.Pregnancy, domain.Result, error) {
	return write(ctx, s, "update_pregnancy", domain.CollectionPregnancies, id,
		func(ctx context.Context) (domain.Pregnancy, error) {
			return s.gateway.UpdatePregnancy(ctx, id, p, fields...)
		},
		(*lifecycle.Coordinator).UpdatePregnancy)
}

// DeletePregnancy removes a pregnancy and reverts its breeding to pending.
func (s *Service) DeletePregnancy(ctx context.Context, id string) (domain.Result, error) {
	_, res, err := write(ctx, s, "delete_pregnancy", domain.CollectionPregnancies, id,
		func(ctx context.Context) (string, error) { return id, s.gateway.DeletePregnancy(ctx, id) },
		(*lifecycle.Coordinator).DeletePregnancy)
	return res, err
}

// FetchBirths loads births into the coordinator.
func (s *Service) FetchBirths(ctx context.Context, f Filters) ([]domain.Birth, error) {
	return read(ctx, s, "fetch_births", domain.CollectionBirths,
		func(ctx context.Context) ([]domain.Birth, error) { return s.gateway.FetchBirths(ctx, f) },
		(*lifecycle.Coordinator).ReplaceBirths)
}

// CreateBirth persists a birth and completes its pregnancy.
func (s *Service) CreateBirth(ctx context.Context, b domain.Birth) (domain.Birth, domain.Result, error) {
	return write(ctx, s, "create_birth", domain.CollectionBirths, "",
		func(ctx context.Context) (domain.Birth, error) { return s.gateway.CreateBirth(ctx, b) },
		(*lifecycle.Coordinator).AddBirth)
}

// UpdateBirth writes the named fields of b.
func (s *Service) UpdateBirth(ctx context.Context, id string, b domain.Birth, fields ...string) (domain.Birth, domain.Result, error) {
	return write(ctx, s, "update_birth", domain.CollectionBirths, id,
		func(ctx context.Context) (domain.Birth, error) { return s.gateway.UpdateBirth(ctx, id, b, fields...) },
		(*lifecycle.Coordinator).UpdateBirth)
}

// DeleteBirth removes a birth and reopens its pregnancy.
func (s *Service) DeleteBirth(ctx context.Context, id string) (domain.Result, error) {
	_, res, err := write(ctx, s, "delete_birth", domain.CollectionBirths, id,
		func(ctx context.Context) (string, error) { return id, s.gateway.DeleteBirth(ctx, id) },
		(*lifecycle.Coordinator).DeleteBirth)
	return res, err
}

// FetchLineageRecords loads lineage records into the coordinator.
func (s *Service) FetchLineageRecords(ctx context.Context, f Filters) ([]domain.LineageRecord, error) {
	return read(ctx, s, "fetch_lineage_records", domain.CollectionLineageRecords,
		func(ctx context.Context) ([]domain.LineageRecord, error) {
			return s.gateway.FetchLineageRecords(ctx, f)
		},
		(*lifecycle.Coordinator).ReplaceLineageRecords)
}

// CreateLineageRecord persists a lineage record.
func (s *Service) CreateLineageRecord(ctx context.Context, l domain.LineageRecord) (domain.LineageRecord, domain.Result, error) {
	return write(ctx, s, "create_lineage_record", domain.CollectionLineageRecords, "",
		func(ctx context.Context) (domain.LineageRecord, error) { return s.gateway.CreateLineageRecord(ctx, l) },
		(*lifecycle.Coordinator).AddLineageRecord)
}

// UpdateLineageRecord writes the named fields of l.
func (s *Service) UpdateLineageRecord(ctx context.Context, id string, l domain.LineageRecord, fields ...string) (domain.LineageRecord, domain.Result, error) {
	return write(ctx, s, "update_lineage_record", domain.CollectionLineageRecords, id,
		func(ctx context.Context) (domain.LineageRecord, error) {
			return s.gateway.UpdateLineageRecord(ctx, id, l, fields...)
		},
		(*lifecycle.Coordinator).UpdateLineageRecord)
}

// DeleteLineageRecord removes a lineage record.
func (s *Service) DeleteLineageRecord(ctx context.Context, id string) (domain.Result, error) {
	_, res, err := write(ctx, s, "delete_lineage_record", domain.CollectionLineageRecords, id,
		func(ctx context.Context) (string, error) { return id, s.gateway.DeleteLineageRecord(ctx, id) },
		(*lifecycle.Coordinator).DeleteLineageRecord)
	return res, err
}

// FetchGeneticProfiles loads genetic profiles into the coordinator.
func (s *Service) FetchGeneticProfiles(ctx context.Context, f Filters) ([]domain.GeneticProfile, error) {
	return read(ctx, s, "fetch_genetic_profiles", domain.CollectionGeneticProfiles,
		func(ctx context.Context) ([]domain.GeneticProfile, error) {
			return s.gateway.FetchGeneticProfiles(ctx, f)
		},
		(*lifecycle.Coordinator).ReplaceGeneticProfiles)
}

// CreateGeneticProfile persists a genetic profile.
func (s *Service) CreateGeneticProfile(ctx context.Context, g domain.GeneticProfile) (domain.GeneticProfile, domain.Result, error) {
	return write(ctx, s, "create_genetic_profile", domain.CollectionGeneticProfiles, "",
		func(ctx context.Context) (domain.GeneticProfile, error) {
			return s.gateway.CreateGeneticProfile(ctx, g)
		},
		(*lifecycle.Coordinator).AddGeneticProfile)
}

// UpdateGeneticProfile writes the named fields of g.
func (s *Service) UpdateGeneticProfile(ctx context.Context, id string, g domain.GeneticProfile, fields ...string) (domain.GeneticProfile, domain.Result, error) {
	return write(ctx, s, "update_genetic_profile", domain.CollectionGeneticProfiles, id,
		func(ctx context.Context) (domain.GeneticProfile, error) {
			return s.gateway.UpdateGeneticProfile(ctx, id, g, fields...)
		},
		(*lifecycle.Coordinator).UpdateGeneticProfile)
}

// DeleteGeneticProfile removes a genetic profile.
func (s *Service) DeleteGeneticProfile(ctx context.Context, id string) (domain.Result, error) {
	_, res, err := write(ctx, s, "delete_genetic_profile", domain.CollectionGeneticProfiles, id,
		func(ctx context.Context) (string, error) { return id, s.gateway.DeleteGeneticProfile(ctx, id) },
		(*lifecycle.Coordinator).DeleteGeneticProfile)
	return res, err
}
