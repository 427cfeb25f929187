package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// relTypes maps each set to the relationship its owner holds to each member.
// Both users of a pair carry their own relationships, so a write to one user
// never touches the other's side.
var relTypes = map[SetName]string{
	SetConnections:     "CONNECTION",
	SetPendingIncoming: "PENDING_IN",
	SetPendingOutgoing: "PENDING_OUT",
}

const userProjection = `
	u.id AS id, u.name AS name, u.role AS role,
	u.skills AS skills, u.expertise AS expertise,
	u.program AS program, u.batch AS batch, u.company AS company,
	u.industry AS industry, u.department AS department, u.institution AS institution,
	[(u)-[:CONNECTION]->(c:User) | c.id] AS connections,
	[(u)-[:PENDING_IN]->(i:User) | i.id] AS pendingIncoming,
	[(u)-[:PENDING_OUT]->(o:User) | o.id] AS pendingOutgoing
`

// Neo4jStore keeps users as nodes and set members as relationships
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewNeo4jStore creates a profile store backed by Neo4j
func NewNeo4jStore(driver neo4j.DriverWithContext) *Neo4jStore {
	return &Neo4jStore{
		driver: driver,
		logger: lib.Log(),
	}
}

// EnsureConstraints creates the uniqueness constraint on user IDs
func (s *Neo4jStore) EnsureConstraints(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.Run(ctx, "CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE", nil)
	if err != nil {
		return fmt.Errorf("failed to create user constraint: %w", err)
	}
	return nil
}

// ReadUser fetches a user node and its relationship sets
func (s *Neo4jStore) ReadUser(ctx context.Context, id string) (*models.User, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, "MATCH (u:User {id: $id}) WHERE u.role IS NOT NULL RETURN "+userProjection,
		map[string]interface{}{"id": id})
	if err != nil {
		return nil, lib.Transient("read user", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, lib.Transient("read user", err)
		}
		return nil, lib.ErrUserNotFound
	}
	return userFromRecord(result.Record()), nil
}

// MutateUserSets applies the set operations to one user in a single transaction
func (s *Neo4jStore) MutateUserSets(ctx context.Context, id string, add, remove []SetOp) error {
	if err := checkOps(add, remove); err != nil {
		return err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		found, err := tx.Run(ctx, "MATCH (u:User {id: $id}) RETURN u.id AS id", map[string]interface{}{"id": id})
		if err != nil {
			return nil, err
		}
		if !found.Next(ctx) {
			if err := found.Err(); err != nil {
				return nil, err
			}
			return nil, lib.ErrUserNotFound
		}

		for set, members := range groupOps(remove) {
			query := fmt.Sprintf(`
				MATCH (u:User {id: $id})-[r:%s]->(m:User)
				WHERE m.id IN $members
				DELETE r
			`, relTypes[set])
			if _, err := tx.Run(ctx, query, map[string]interface{}{"id": id, "members": members}); err != nil {
				return nil, err
			}
		}

		for set, members := range groupOps(add) {
			query := fmt.Sprintf(`
				MATCH (u:User {id: $id})
				UNWIND $members AS memberID
				MERGE (m:User {id: memberID})
				MERGE (u)-[:%s]->(m)
			`, relTypes[set])
			if _, err := tx.Run(ctx, query, map[string]interface{}{"id": id, "members": members}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if errors.Is(err, lib.ErrUserNotFound) {
		return err
	}
	if err != nil {
		s.logger.Warn("Neo4j set mutation failed", zap.String("user_id", id), zap.Error(err))
		return lib.Transient("mutate user", err)
	}
	return nil
}

// ListUsers returns users with a profile, filtered by role when given
func (s *Neo4jStore) ListUsers(ctx context.Context, roles ...models.Role) ([]models.User, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	roleNames := make([]string, len(roles))
	for i, r := range roles {
		roleNames[i] = string(r)
	}

	query := `
		MATCH (u:User)
		WHERE u.role IS NOT NULL AND (size($roles) = 0 OR u.role IN $roles)
		RETURN ` + userProjection + `
		ORDER BY id
	`
	result, err := session.Run(ctx, query, map[string]interface{}{"roles": roleNames})
	if err != nil {
		return nil, lib.Transient("list users", err)
	}

	var users []models.User
	for result.Next(ctx) {
		users = append(users, *userFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, lib.Transient("list users", err)
	}
	return users, nil
}

// Upsert writes the user's profile properties and replaces its relationship sets
func (s *Neo4jStore) Upsert(ctx context.Context, user models.User) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		_, err := tx.Run(ctx, `
			MERGE (u:User {id: $id})
			SET u.name = $name, u.role = $role, u.skills = $skills, u.expertise = $expertise,
				u.program = $program, u.batch = $batch, u.company = $company,
				u.industry = $industry, u.department = $department, u.institution = $institution
			WITH u
			OPTIONAL MATCH (u)-[r:CONNECTION|PENDING_IN|PENDING_OUT]->()
			DELETE r
		`, map[string]interface{}{
			"id":          user.Id,
			"name":        user.Name,
			"role":        string(user.Role),
			"skills":      nonNil(user.Skills),
			"expertise":   nonNil(user.Expertise),
			"program":     user.Program,
			"batch":       user.Batch,
			"company":     user.Company,
			"industry":    user.Industry,
			"department":  user.Department,
			"institution": user.Institution,
		})
		return nil, err
	})
	if err != nil {
		return lib.Transient("upsert user", err)
	}

	var add []SetOp
	for _, id := range user.Connections {
		add = append(add, SetOp{Set: SetConnections, Member: id})
	}
	for _, id := range user.PendingIncoming {
		add = append(add, SetOp{Set: SetPendingIncoming, Member: id})
	}
	for _, id := range user.PendingOutgoing {
		add = append(add, SetOp{Set: SetPendingOutgoing, Member: id})
	}
	if len(add) == 0 {
		return nil
	}
	return s.MutateUserSets(ctx, user.Id, add, nil)
}

func userFromRecord(record *neo4j.Record) *models.User {
	return &models.User{
		Id:              getString(record, "id"),
		Name:            getString(record, "name"),
		Role:            models.Role(getString(record, "role")),
		Skills:          getStringSlice(record, "skills"),
		Expertise:       getStringSlice(record, "expertise"),
		Program:         getString(record, "program"),
		Batch:           getString(record, "batch"),
		Company:         getString(record, "company"),
		Industry:        getString(record, "industry"),
		Department:      getString(record, "department"),
		Institution:     getString(record, "institution"),
		Connections:     getStringSlice(record, "connections"),
		PendingIncoming: getStringSlice(record, "pendingIncoming"),
		PendingOutgoing: getStringSlice(record, "pendingOutgoing"),
	}
}

func getString(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getStringSlice(record *neo4j.Record, key string) []string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return nil
	}
	slice, ok := val.([]interface{})
	if !ok {
		return nil
	}
	result := make([]string, 0, len(slice))
	for _, v := range slice {
		if str, ok := v.(string); ok {
			result = append(result, str)
		}
	}
	return result
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
