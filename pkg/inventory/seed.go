package inventory

import "fmt"

// SeedUser is a default account with its plain-text bootstrap password
type SeedUser struct {
	User     User
	Password string
}

// SeedData is the default content written to missing collections
// 未作成コレクションに投入する初期データ
type SeedData struct {
	Products   []Product
	Operations []Operation
	Users      []SeedUser
}

// EmptySeed writes empty collections on first use
func EmptySeed() SeedData {
	return SeedData{}
}

func (s SeedData) users() ([]User, error) {
	users := make([]User, 0, len(s.Users))
	for _, su := range s.Users {
		hash, err := HashPassword(su.Password)
		if err != nil {
			return nil, fmt.Errorf("初期ユーザー %s のパスワードハッシュ化に失敗しました: %w", su.User.Email, err)
		}
		u := su.User
		u.PasswordHash = hash
		users = append(users, u)
	}
	return users, nil
}

// DefaultSeed returns the demo warehouse data
// デモ用の倉庫データを返す
func DefaultSeed() SeedData {
	return SeedData{
		Products: []Product{
			{ID: "1", SKU: "ELEC-001", Name: "Wireless Ergonomic Mouse", Category: "Electronics", Quantity: 145, Unit: "pcs", Location: "WH/Stock/Row1", Price: 29.99, Cost: 12.50, Supplier: "TechSource Inc.", MinLevel: 20},
			{ID: "2", SKU: "ELEC-002", Name: "Mechanical Keyboard RGB", Category: "Electronics", Quantity: 12, Unit: "pcs", Location: "WH/Stock/Row1", Price: 89.99, Cost: 45.00, Supplier: "TechSource Inc.", MinLevel: 15},
			{ID: "3", SKU: "FURN-104", Name: "Office Chair - Mesh", Category: "Furniture", Quantity: 8, Unit: "pcs", Location: "WH/Stock/Row4", Price: 150.00, Cost: 80.00, Supplier: "FurniWorld", MinLevel: 5},
			{ID: "4", SKU: "ACC-552", Name: "USB-C Hub Multiport", Category: "Accessories", Quantity: 300, Unit: "pcs", Location: "WH/Stock/Row2", Price: 45.00, Cost: 15.00, Supplier: "CableKing", MinLevel: 50},
			{ID: "5", SKU: "ELEC-005", Name: `27" 4K Monitor`, Category: "Electronics", Quantity: 0, Unit: "pcs", Location: "WH/Stock/Row3", Price: 350.00, Cost: 210.00, Supplier: "ScreenMasters", MinLevel: 10},
		},
		Operations: []Operation{
			{ID: "op1", Reference: "WH/IN/00124", Type: OperationTypeReceipt, Partner: "TechSource Inc.", Status: OperationStatusReady, ScheduledDate: "2023-10-25", Lines: []OperationLine{{ProductID: "1", Quantity: 50}}},
			{ID: "op2", Reference: "WH/OUT/00098", Type: OperationTypeDelivery, Partner: "Acme Corp", Status: OperationStatusReady, ScheduledDate: "2023-10-26", Lines: []OperationLine{{ProductID: "2", Quantity: 2}}},
			{ID: "op3", Reference: "WH/INT/0033", Type: OperationTypeInternal, Partner: "Internal", Status: OperationStatusDraft, ScheduledDate: "2023-10-27", Lines: []OperationLine{{ProductID: "4", Quantity: 10}}},
			{ID: "op4", Reference: "WH/OUT/00099", Type: OperationTypeDelivery, Partner: "Globex", Status: OperationStatusDone, ScheduledDate: "2023-10-24", Lines: []OperationLine{{ProductID: "3", Quantity: 1, Done: 1}}},
		},
		Users: []SeedUser{
			{User: User{ID: "u1", Name: "Admin User", Email: "admin@nex.com", Role: RoleAdmin, Avatar: "AU"}, Password: "123"},
			{User: User{ID: "u2", Name: "Manager", Email: "manager@nex.com", Role: RoleManager, Avatar: "MG"}, Password: "123"},
			{User: User{ID: "u3", Name: "Worker", Email: "worker@nex.com", Role: RoleUser, Avatar: "WK"}, Password: "123"},
		},
	}
}
