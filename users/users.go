package users

// User holds the profile fields served by the resource endpoints. User
// registration, login and credential storage live in the account service;
// this server only resolves already-authenticated users and reads profiles.
type User struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	Gender         string `json:"gender,omitempty"`

	// Extended profile, only exposed through /api/user/details.
	Bio          string `json:"bio,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	PlaceOfBirth string `json:"place_of_birth,omitempty"`
	DateOfBirth  string `json:"date_of_birth,omitempty"`
	Address      string `json:"address,omitempty"`
}

// Profile is the basic projection returned for the view-user scope.
type Profile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	Username       string `json:"username"`
	Gender         string `json:"gender,omitempty"`
}

// DetailedProfile is the superset returned for the detail-user scope.
type DetailedProfile struct {
	Profile
	Bio          string `json:"bio,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	PlaceOfBirth string `json:"place_of_birth,omitempty"`
	DateOfBirth  string `json:"date_of_birth,omitempty"`
	Address      string `json:"address,omitempty"`
}

// Profile projects the basic profile fields.
func (u *User) Profile() Profile {
	return Profile{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		Username:       u.Username,
		Gender:         u.Gender,
	}
}

// DetailedProfile projects the full profile.
func (u *User) DetailedProfile() DetailedProfile {
	return DetailedProfile{
		Profile:      u.Profile(),
		Bio:          u.Bio,
		PhoneNumber:  u.PhoneNumber,
		PlaceOfBirth: u.PlaceOfBirth,
		DateOfBirth:  u.DateOfBirth,
		Address:      u.Address,
	}
}
