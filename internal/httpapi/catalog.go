package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"posledger/internal/domain"
	"posledger/internal/money"
	"posledger/internal/service"
	"posledger/internal/store"
)

// parseForm reads a multipart or urlencoded body.
func (a *API) parseForm(r *http.Request) error {
	var err error
	if isMultipart(r) {
		err = r.ParseMultipartForm(a.uploadLimit)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return store.Invalidf("invalid form data: %v", err)
	}
	if len(r.PostForm) == 0 && (r.MultipartForm == nil || len(r.MultipartForm.File) == 0) {
		return store.Invalidf("No input data provided")
	}
	return nil
}

// formValue returns nil for absent or blank fields.
func formValue(r *http.Request, key string) *string {
	v := r.PostFormValue(key)
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}

func formID(r *http.Request, key string) (*int64, error) {
	v := formValue(r, key)
	if v == nil {
		return nil, nil
	}
	id, err := strconv.ParseInt(strings.TrimSpace(*v), 10, 64)
	if err != nil {
		return nil, store.Invalidf("Invalid %s", strings.ReplaceAll(key, "_", " "))
	}
	return &id, nil
}

func requireFormID(r *http.Request, key string, missing string) (int64, error) {
	id, err := formID(r, key)
	if err != nil {
		return 0, err
	}
	if id == nil {
		return 0, store.Invalidf("%s", missing)
	}
	return *id, nil
}

func formMoney(r *http.Request, key string) (*money.Money, error) {
	v := formValue(r, key)
	if v == nil {
		return nil, nil
	}
	m, err := money.Parse(*v)
	if err != nil {
		return nil, store.Invalidf("Invalid %s value", key)
	}
	return &m, nil
}

func formUpload(r *http.Request, key string) (*domain.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[key]
	if len(headers) == 0 {
		return nil, nil
	}
	header := headers[0]
	file, err := header.Open()
	if err != nil {
		return nil, store.Invalidf("cannot read %s upload: %v", key, err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, store.Invalidf("cannot read %s upload: %v", key, err)
	}
	return &domain.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// Users

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.service.ListUsers(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	user, err := a.service.GetUser(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func userInput(r *http.Request) (domain.UserInput, error) {
	profile, err := formUpload(r, "profile")
	if err != nil {
		return domain.UserInput{}, err
	}
	return domain.UserInput{
		UserName: formValue(r, "user_name"),
		Password: formValue(r, "password"),
		Profile:  profile,
	}, nil
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if err := a.parseForm(r); err != nil {
		a.fail(w, r, err)
		return
	}
	in, err := userInput(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	user, err := a.service.CreateUser(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User created", "user": user})
}

// ownedUserID reads the form user_id and checks it against the caller.
func (a *API) ownedUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if err := a.parseForm(r); err != nil {
		a.fail(w, r, err)
		return 0, false
	}
	id, err := requireFormID(r, "user_id", "User ID is required")
	if err != nil {
		a.fail(w, r, err)
		return 0, false
	}
	actor, ok := service.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errAuthRequired)
		return 0, false
	}
	if actor.UserID != id {
		writeError(w, http.StatusForbidden, errors.New("Forbidden: cannot modify other user"))
		return 0, false
	}
	return id, true
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := a.ownedUserID(w, r)
	if !ok {
		return
	}
	in, err := userInput(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	user, err := a.service.UpdateUser(r.Context(), id, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User updated", "user": user})
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := a.ownedUserID(w, r)
	if !ok {
		return
	}
	if err := a.service.DeleteUser(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User deleted"})
}

// Products

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	product, err := a.service.GetProduct(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func productInput(r *http.Request) (domain.ProductInput, error) {
	categoryID, err := formID(r, "category_id")
	if err != nil {
		return domain.ProductInput{}, err
	}
	cost, err := formMoney(r, "cost")
	if err != nil {
		return domain.ProductInput{}, err
	}
	price, err := formMoney(r, "price")
	if err != nil {
		return domain.ProductInput{}, err
	}
	image, err := formUpload(r, "image")
	if err != nil {
		return domain.ProductInput{}, err
	}
	return domain.ProductInput{
		Name:       formValue(r, "name"),
		CategoryID: categoryID,
		Cost:       cost,
		Price:      price,
		Image:      image,
	}, nil
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.parseForm(r); err != nil {
		a.fail(w, r, err)
		return
	}
	in, err := productInput(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Product created", "product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.parseForm(r); err != nil {
		a.fail(w, r, err)
		return
	}
	id, err := requireFormID(r, "product_id", "Product ID is required")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	in, err := productInput(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), id, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Product updated", "product": product})
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.parseForm(r); err != nil {
		a.fail(w, r, err)
		return
	}
	id, err := requireFormID(r, "product_id", "Product ID is required")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.service.DeleteProduct(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Product deleted"})
}

// Categories accept either a form (with an optional image) or a JSON body.

type categoryBody struct {
	CategoryID *int64  `json:"category_id"`
	Name       *string `json:"name"`
}

func (a *API) readCategory(r *http.Request) (*int64, domain.CategoryInput, error) {
	if isJSON(r) {
		var body categoryBody
		if err := decodeJSON(r, &body); err != nil {
			return nil, domain.CategoryInput{}, err
		}
		return body.CategoryID, domain.CategoryInput{Name: body.Name}, nil
	}
	if err := a.parseForm(r); err != nil {
		return nil, domain.CategoryInput{}, err
	}
	id, err := formID(r, "category_id")
	if err != nil {
		return nil, domain.CategoryInput{}, err
	}
	image, err := formUpload(r, "image")
	if err != nil {
		return nil, domain.CategoryInput{}, err
	}
	return id, domain.CategoryInput{Name: formValue(r, "name"), Image: image}, nil
}

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.service.ListCategories(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (a *API) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	category, err := a.service.GetCategory(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (a *API) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	_, in, err := a.readCategory(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	category, err := a.service.CreateCategory(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Category created", "category": category})
}

func (a *API) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, in, err := a.readCategory(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if id == nil {
		a.fail(w, r, store.Invalidf("Category ID is required"))
		return
	}
	category, err := a.service.UpdateCategory(r.Context(), *id, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Category updated", "category": category})
}

func (a *API) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, _, err := a.readCategory(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if id == nil {
		a.fail(w, r, store.Invalidf("Category ID is required"))
		return
	}
	if err := a.service.DeleteCategory(r.Context(), *id); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Category deleted"})
}

// Branches

func (a *API) handleListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := a.service.ListBranches(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if branches == nil {
		branches = []domain.Branch{}
	}
	writeJSON(w, http.StatusOK, branches)
}

func (a *API) handleGetBranch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	branch, err := a.service.GetBranch(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, branch)
}

func branchInput(r *http.Request) (domain.BranchInput, error) {
	logo, err := formUpload(r, "logo")
	if err != nil {
		return domain.BranchInput{}, err
	}
	return domain.BranchInput{
		Name:     formValue(r, "name"),
		Location: formValue(r, "location"),
		Phone:    formValue(r, "phone"),
		Logo:     logo,
	}, nil
}

func (a *API) handleCreateBranch(w http.ResponseWriter, r *http.Request) {
	if err := a.parseForm(r); err != nil {
		a.fail(w, r, err)
		return
	}
	in, err := branchInput(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	branch, err := a.service.CreateBranch(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Branch created", "branch": branch})
}

func (a *API) handleUpdateBranch(w http.ResponseWriter, r *http.Request) {
	if err := a.parseForm(r); err != nil {
		a.fail(w, r, err)
		return
	}
	id, err := requireFormID(r, "branch_id", "Branch ID is required")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	in, err := branchInput(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	branch, err := a.service.UpdateBranch(r.Context(), id, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Branch updated", "branch": branch})
}

func (a *API) handleDeleteBranch(w http.ResponseWriter, r *http.Request) {
	if err := a.parseForm(r); err != nil {
		a.fail(w, r, err)
		return
	}
	id, err := requireFormID(r, "branch_id", "Branch ID is required")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.service.DeleteBranch(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Branch deleted"})
}

// Customers

type customerUpdateRequest struct {
	CustomerID int64 `json:"customer_id" validate:"required,gt=0"`
	domain.CustomerRequest
}

type customerDeleteRequest struct {
	CustomerID int64 `json:"customer_id" validate:"required,gt=0"`
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := a.service.ListCustomers(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if customers == nil {
		customers = []domain.Customer{}
	}
	writeJSON(w, http.StatusOK, customers)
}

func (a *API) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	customer, err := a.service.GetCustomer(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerRequest
	if err := a.decodeValid(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	customer, err := a.service.CreateCustomer(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Customer created", "customer": customer})
}

func (a *API) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerUpdateRequest
	if err := a.decodeValid(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	customer, err := a.service.UpdateCustomer(r.Context(), req.CustomerID, req.CustomerRequest)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Customer updated", "customer": customer})
}

func (a *API) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerDeleteRequest
	if err := a.decodeValid(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.service.DeleteCustomer(r.Context(), req.CustomerID); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Customer deleted"})
}
