package service

import (
	"context"

	"posledger/internal/domain"
	"posledger/internal/store"
)

const (
	branchDir   = "branches"
	userDir     = "users"
	categoryDir = "categories"
	productDir  = "products"
)

// Branches

func (s *Service) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	return s.repo.ListBranches(ctx)
}

func (s *Service) GetBranch(ctx context.Context, id int64) (domain.Branch, error) {
	branch, err := s.repo.GetBranch(ctx, id)
	if err != nil {
		return domain.Branch{}, err
	}
	return *branch, nil
}

func (s *Service) CreateBranch(ctx context.Context, in domain.BranchInput) (domain.Branch, error) {
	name, _ := trimmed(in.Name)
	if name == "" {
		return domain.Branch{}, store.Invalidf("Branch name is required")
	}
	location, _ := trimmed(in.Location)
	if location == "" {
		return domain.Branch{}, store.Invalidf("Location is required")
	}
	phone, err := s.normalizePhone(in.Phone)
	if err != nil {
		return domain.Branch{}, err
	}

	logo, err := s.saveImage(ctx, branchDir, in.Logo, false)
	if err != nil {
		return domain.Branch{}, err
	}
	created, err := s.repo.CreateBranch(ctx, domain.Branch{Name: name, Location: location, Phone: phone, Logo: logo})
	if err != nil {
		s.discardImage(ctx, logo)
		return domain.Branch{}, err
	}
	return *created, nil
}

func (s *Service) UpdateBranch(ctx context.Context, id int64, in domain.BranchInput) (domain.Branch, error) {
	existing, err := s.repo.GetBranch(ctx, id)
	if err != nil {
		return domain.Branch{}, err
	}

	updated := *existing
	if name, ok := trimmed(in.Name); ok && name != "" {
		updated.Name = name
	}
	if location, ok := trimmed(in.Location); ok && location != "" {
		updated.Location = location
	}
	if in.Phone != nil {
		phone, err := s.normalizePhone(in.Phone)
		if err != nil {
			return domain.Branch{}, err
		}
		updated.Phone = phone
	}

	logo, err := s.saveImage(ctx, branchDir, in.Logo, false)
	if err != nil {
		return domain.Branch{}, err
	}
	if logo != nil {
		updated.Logo = logo
	}
	saved, err := s.repo.UpdateBranch(ctx, updated)
	if err != nil {
		s.discardImage(ctx, logo)
		return domain.Branch{}, err
	}
	if logo != nil {
		s.discardImage(ctx, existing.Logo)
	}
	return *saved, nil
}

func (s *Service) DeleteBranch(ctx context.Context, id int64) error {
	existing, err := s.repo.GetBranch(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteBranch(ctx, id); err != nil {
		return err
	}
	s.discardImage(ctx, existing.Logo)
	return nil
}

// Users

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *Service) GetUser(ctx context.Context, id int64) (domain.User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	return *user, nil
}

func (s *Service) CreateUser(ctx context.Context, in domain.UserInput) (domain.User, error) {
	userName, _ := trimmed(in.UserName)
	if userName == "" {
		return domain.User{}, store.Invalidf("UserName is required")
	}
	if in.Password == nil || *in.Password == "" {
		return domain.User{}, store.Invalidf("Password is required")
	}
	hash, err := HashPassword(*in.Password)
	if err != nil {
		return domain.User{}, err
	}

	profile, err := s.saveImage(ctx, userDir, in.Profile, true)
	if err != nil {
		return domain.User{}, err
	}
	created, err := s.repo.CreateUser(ctx, domain.User{UserName: userName, PasswordHash: hash, Profile: profile})
	if err != nil {
		s.discardImage(ctx, profile)
		return domain.User{}, err
	}
	return *created, nil
}

func (s *Service) UpdateUser(ctx context.Context, id int64, in domain.UserInput) (domain.User, error) {
	existing, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	updated := *existing
	if userName, ok := trimmed(in.UserName); ok && userName != "" {
		updated.UserName = userName
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := HashPassword(*in.Password)
		if err != nil {
			return domain.User{}, err
		}
		updated.PasswordHash = hash
	}

	profile, err := s.saveImage(ctx, userDir, in.Profile, true)
	if err != nil {
		return domain.User{}, err
	}
	if profile != nil {
		updated.Profile = profile
	}
	saved, err := s.repo.UpdateUser(ctx, updated)
	if err != nil {
		s.discardImage(ctx, profile)
		return domain.User{}, err
	}
	if profile != nil {
		s.discardImage(ctx, existing.Profile)
	}
	return *saved, nil
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	existing, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.discardImage(ctx, existing.Profile)
	return nil
}

// Categories

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) GetCategory(ctx context.Context, id int64) (domain.Category, error) {
	category, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}
	return *category, nil
}

func (s *Service) CreateCategory(ctx context.Context, in domain.CategoryInput) (domain.Category, error) {
	name, _ := trimmed(in.Name)
	if name == "" {
		return domain.Category{}, store.Invalidf("Category name is required")
	}

	image, err := s.saveImage(ctx, categoryDir, in.Image, false)
	if err != nil {
		return domain.Category{}, err
	}
	created, err := s.repo.CreateCategory(ctx, domain.Category{Name: name, Image: image})
	if err != nil {
		s.discardImage(ctx, image)
		return domain.Category{}, err
	}
	return *created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id int64, in domain.CategoryInput) (domain.Category, error) {
	existing, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}

	updated := *existing
	if name, ok := trimmed(in.Name); ok && name != "" {
		updated.Name = name
	}

	image, err := s.saveImage(ctx, categoryDir, in.Image, false)
	if err != nil {
		return domain.Category{}, err
	}
	if image != nil {
		updated.Image = image
	}
	saved, err := s.repo.UpdateCategory(ctx, updated)
	if err != nil {
		s.discardImage(ctx, image)
		return domain.Category{}, err
	}
	if image != nil {
		s.discardImage(ctx, existing.Image)
	}
	return *saved, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	existing, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.discardImage(ctx, existing.Image)
	return nil
}

// Products

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	name, _ := trimmed(in.Name)
	switch {
	case name == "":
		return domain.Product{}, store.Invalidf("Product name is required")
	case in.CategoryID == nil || *in.CategoryID <= 0:
		return domain.Product{}, store.Invalidf("Category ID is required")
	case in.Cost == nil:
		return domain.Product{}, store.Invalidf("Cost is required")
	case in.Price == nil:
		return domain.Product{}, store.Invalidf("Price is required")
	case in.Cost.IsNegative() || in.Price.IsNegative():
		return domain.Product{}, store.Invalidf("cost and price must not be negative")
	}

	image, err := s.saveImage(ctx, productDir, in.Image, true)
	if err != nil {
		return domain.Product{}, err
	}
	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:       name,
		CategoryID: *in.CategoryID,
		Cost:       *in.Cost,
		Price:      *in.Price,
		Image:      image,
	})
	if err != nil {
		s.discardImage(ctx, image)
		return domain.Product{}, err
	}
	return *created, nil
}

// UpdateProduct changes the catalog entry only. Items already on invoices
// keep the price they were sold at.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in domain.ProductInput) (domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if name, ok := trimmed(in.Name); ok && name != "" {
		updated.Name = name
	}
	if in.CategoryID != nil {
		if *in.CategoryID <= 0 {
			return domain.Product{}, store.Invalidf("Invalid category ID")
		}
		updated.CategoryID = *in.CategoryID
	}
	if in.Cost != nil {
		if in.Cost.IsNegative() {
			return domain.Product{}, store.Invalidf("Invalid cost value")
		}
		updated.Cost = *in.Cost
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return domain.Product{}, store.Invalidf("Invalid price value")
		}
		updated.Price = *in.Price
	}

	image, err := s.saveImage(ctx, productDir, in.Image, true)
	if err != nil {
		return domain.Product{}, err
	}
	if image != nil {
		updated.Image = image
	}
	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		s.discardImage(ctx, image)
		return domain.Product{}, err
	}
	if image != nil {
		s.discardImage(ctx, existing.Image)
	}
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.discardImage(ctx, existing.Image)
	return nil
}

// Customers

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (domain.Customer, error) {
	name, _ := trimmed(req.Name)
	if name == "" {
		return domain.Customer{}, store.Invalidf("Customer name is required")
	}
	phone, err := s.normalizePhone(req.Phone)
	if err != nil {
		return domain.Customer{}, err
	}
	email, _ := trimmed(req.Email)

	customer := domain.Customer{Name: name, Phone: phone}
	if email != "" {
		customer.Email = &email
	}
	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id int64, req domain.CustomerRequest) (domain.Customer, error) {
	existing, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	updated := *existing
	if name, ok := trimmed(req.Name); ok && name != "" {
		updated.Name = name
	}
	if req.Phone != nil {
		phone, err := s.normalizePhone(req.Phone)
		if err != nil {
			return domain.Customer{}, err
		}
		updated.Phone = phone
	}
	if email, ok := trimmed(req.Email); ok {
		updated.Email = nil
		if email != "" {
			updated.Email = &email
		}
	}

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	return s.repo.DeleteCustomer(ctx, id)
}
