package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/certificate"
)

type certificateRepository struct {
	db *DB
}

var _ certificate.Repository = (*certificateRepository)(nil)

func NewCertificateRepository(db *DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) find(userID, courseID string) (certificate.Certificate, bool) {
	for _, c := range repo.db.certificates {
		if c.UserID == userID && c.CourseID == courseID {
			return c, true
		}
	}
	return certificate.Certificate{}, false
}

func (repo *certificateRepository) CreateCertificate(
	_ context.Context,
	cert certificate.Certificate,
	_ ...core.DBExecutor,
) (certificate.Certificate, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if existing, ok := repo.find(cert.UserID, cert.CourseID); ok {
		return existing, nil
	}
	cert.ID = uuid.New().String()
	repo.db.certificates[cert.CertificateID] = cert
	return cert, nil
}

func (repo *certificateRepository) GetCertificate(
	_ context.Context,
	certificateID string,
	_ ...core.DBExecutor,
) (certificate.Certificate, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.certificates[certificateID]; ok {
		return c, nil
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) FindCertificate(
	_ context.Context,
	userID, courseID string,
	_ ...core.DBExecutor,
) (certificate.Certificate, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.find(userID, courseID); ok {
		return c, nil
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) QueryCertificates(
	_ context.Context,
	filter certificate.QueryFilter,
	_ ...core.DBExecutor,
) ([]certificate.Certificate, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	certs := make([]certificate.Certificate, 0)
	for _, c := range repo.db.certificates {
		if filter.UserID != "" && c.UserID != filter.UserID {
			continue
		}
		if filter.CourseID != "" && c.CourseID != filter.CourseID {
			continue
		}
		certs = append(certs, c)
	}
	sort.SliceStable(certs, func(i, j int) bool { return certs[i].CreatedAt.After(certs[j].CreatedAt) })
	return certs, nil
}
