package mongostore

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"taskhub/internal/scope"
)

// matchNothing is a predicate no document satisfies.
var matchNothing = bson.M{"_id": bson.M{"$in": bson.A{}}}

func ownsDoc(id string) bson.M {
	return bson.M{"$or": bson.A{bson.M{"creatorId": id}, bson.M{"assigneeId": id}}}
}

func scopeDoc(s scope.Scope) bson.M {
	if s.Empty() {
		return matchNothing
	}
	switch s.Kind {
	case scope.Universe:
		return bson.M{}
	case scope.Team:
		switch {
		case s.Team != "" && s.PrincipalID != "":
			return bson.M{"$or": bson.A{
				bson.M{"team": s.Team},
				bson.M{"creatorId": s.PrincipalID},
				bson.M{"assigneeId": s.PrincipalID},
			}}
		case s.Team != "":
			return bson.M{"team": s.Team}
		}
	}
	return ownsDoc(s.PrincipalID)
}

func containsFold(text string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(text), "$options": "i"}
}

// taskFilter renders f as a single $and whose first element is the role scope.
func taskFilter(f scope.Filter) bson.M {
	and := bson.A{scopeDoc(f.Scope)}
	c := f.Criteria

	if c.Status != "" {
		and = append(and, bson.M{"status": string(c.Status)})
	}
	if c.Priority != "" {
		and = append(and, bson.M{"priority": string(c.Priority)})
	}
	if c.AssigneeID != "" {
		and = append(and, bson.M{"assigneeId": c.AssigneeID})
	}
	if c.CreatorID != "" {
		and = append(and, bson.M{"creatorId": c.CreatorID})
	}
	if c.Team != "" {
		and = append(and, bson.M{"team": c.Team})
	}
	if c.DueFrom != nil || c.DueTo != nil {
		due := bson.M{"$ne": nil}
		if c.DueFrom != nil {
			due["$gte"] = *c.DueFrom
		}
		if c.DueTo != nil {
			due["$lte"] = *c.DueTo
		}
		and = append(and, bson.M{"dueDate": due})
	}
	if len(c.IDs) > 0 {
		and = append(and, bson.M{"_id": bson.M{"$in": c.IDs}})
	}
	if c.Search != "" {
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"title": containsFold(c.Search)},
			bson.M{"description": containsFold(c.Search)},
		}})
	}
	return bson.M{"$and": and}
}

func userFilter(f scope.UserFilter) bson.M {
	var first bson.M
	s := f.Scope
	switch {
	case s.Empty():
		first = matchNothing
	case s.Kind == scope.Universe:
		first = bson.M{}
	case s.Kind == scope.Team && s.Team != "" && s.PrincipalID != "":
		first = bson.M{"$or": bson.A{bson.M{"team": s.Team}, bson.M{"_id": s.PrincipalID}}}
	case s.Kind == scope.Team && s.Team != "":
		first = bson.M{"team": s.Team}
	default:
		first = bson.M{"_id": s.PrincipalID}
	}

	and := bson.A{first}
	if f.Role != "" {
		and = append(and, bson.M{"role": string(f.Role)})
	}
	if f.Search != "" {
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"name": containsFold(f.Search)},
			bson.M{"email": containsFold(f.Search)},
		}})
	}
	return bson.M{"$and": and}
}

func taskSort(s scope.Sort) bson.D {
	dir := 1
	if s.Desc {
		dir = -1
	}
	switch s.Field {
	case scope.SortDueDate:
		return bson.D{{Key: "noDue", Value: 1}, {Key: "dueDate", Value: dir}, {Key: "_id", Value: 1}}
	case scope.SortPriority:
		return bson.D{{Key: "priorityRank", Value: dir}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "createdAt", Value: dir}, {Key: "_id", Value: 1}}
	}
}

// bulkAssignUpdate sets the assignee and applies the overdue rule in the
// same write.
func bulkAssignUpdate(assigneeID string, now time.Time) mongo.Pipeline {
	pastDue := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$eq", Value: bson.A{"$noDue", false}}},
		bson.D{{Key: "$lt", Value: bson.A{"$dueDate", now}}},
		bson.D{{Key: "$ne", Value: bson.A{"$status", "completed"}}},
	}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "assigneeId", Value: assigneeID},
			{Key: "updatedAt", Value: now},
			{Key: "status", Value: bson.D{{Key: "$cond", Value: bson.A{pastDue, "overdue", "$status"}}}},
		}}},
	}
}
