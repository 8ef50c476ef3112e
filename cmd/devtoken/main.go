// Command devtoken mints access tokens signed with JWT_SECRET_KEY, in the
// same shape the identity provider issues, for local testing.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/user"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/jwt"
	"github.com/joho/godotenv"
)

func main() {
	userID := flag.String("user", "", "user id claim")
	name := flag.String("name", "", "display name claim")
	role := flag.String("role", string(user.RoleMahasiswa), "role claim (admin or mahasiswa)")
	expiry := flag.String("exp", "1h", "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET_KEY")
	if secret == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET_KEY and -user are required")
		os.Exit(2)
	}

	token, _, err := jwt.NewJWTService(secret, *expiry).GenerateAccessToken(*userID, *name, user.Role(*role))
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to sign token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
